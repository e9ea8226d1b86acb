// Package renderer talks to a headless-render service (browserless-style
// POST /render) that navigates the booking site and returns settled HTML.
// The page behind the service is a single-owner resource, so a weighted
// semaphore of one serializes navigation across callers.
package renderer

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"pricewatch/internal/adapters/observability"
	"pricewatch/internal/domain"
)

type Client struct {
	http       *resty.Client
	rl         *rate.Limiter
	sem        *semaphore.Weighted
	targetBase string
}

// New builds a client against the render service at renderBase. targetBase
// is the booking site's search URL; timeout bounds one navigation and is
// the only guard against a hung page. rps caps request rate client-side.
func New(renderBase, targetBase string, timeout time.Duration, rps int) (*Client, error) {
	if renderBase == "" {
		return nil, fmt.Errorf("renderer: base URL is required")
	}
	if targetBase == "" {
		return nil, fmt.Errorf("renderer: target base URL is required")
	}
	if rps <= 0 {
		rps = 1
	}
	hc := resty.New().
		SetBaseURL(renderBase).
		SetTimeout(timeout).
		SetHeader("User-Agent", "pricewatch/1.0")
	return &Client{
		http:       hc,
		rl:         rate.NewLimiter(rate.Limit(rps), rps),
		sem:        semaphore.NewWeighted(1),
		targetBase: targetBase,
	}, nil
}

// AcquireSession takes exclusive ownership of the rendering page. The
// returned release must run exactly once; callers defer it immediately.
func (c *Client) AcquireSession(ctx context.Context) (func(), error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { c.sem.Release(1) }, nil
}

type renderRequest struct {
	URL       string `json:"url"`
	WaitUntil string `json:"waitUntil"`
}

// FetchRenderedHTML navigates the booking-site search page for q and
// returns the rendered document. Every failure is wrapped as a FetchError:
// one failed attempt from the retry loop's point of view.
func (c *Client) FetchRenderedHTML(ctx context.Context, q domain.Query) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html").
		SetBody(renderRequest{URL: c.targetURL(q), WaitUntil: "networkidle0"}).
		Post("/render")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		observability.ObserveRender(0, time.Since(start))
		return "", &domain.FetchError{Query: q, Err: err}
	}

	observability.ObserveRender(res.StatusCode(), time.Since(start))
	if res.StatusCode() != 200 {
		return "", &domain.FetchError{Query: q, Err: fmt.Errorf("render service returned %d", res.StatusCode())}
	}

	html := res.String()
	if html == "" {
		return "", &domain.FetchError{Query: q, Err: fmt.Errorf("render service returned empty body")}
	}
	return html, nil
}

func (c *Client) targetURL(q domain.Query) string {
	v := url.Values{}
	v.Set("q", q.HotelName)
	v.Set("checkin", q.CheckIn.Format("2006-01-02"))
	v.Set("checkout", q.CheckOut.Format("2006-01-02"))
	if q.Guests > 0 {
		v.Set("guests", strconv.Itoa(q.Guests))
	}
	return c.targetBase + "?" + v.Encode()
}
