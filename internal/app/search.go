package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"pricewatch/internal/adapters/observability"
	"pricewatch/internal/domain"
	"pricewatch/internal/extract"
	"pricewatch/internal/normalize"
	"pricewatch/internal/retry"
)

// SearchConfig is the immutable per-process tuning for the pipeline,
// constructed once at startup and passed in whole.
type SearchConfig struct {
	Retry      retry.Policy
	BatchDelay time.Duration // pause between hotels in a batch sweep
	Normalize  normalize.Options
}

// SearchService runs one hotel/date-range query end to end: rendered HTML
// through the retrying renderer, candidate extraction, then an appended
// Observation. Parse failures never persist anything.
type SearchService struct {
	renderer  domain.Renderer
	store     domain.ObservationStore
	extractor *extract.Extractor
	cfg       SearchConfig
	now       func() time.Time
}

func NewSearchService(r domain.Renderer, s domain.ObservationStore, cfg SearchConfig) *SearchService {
	return &SearchService{
		renderer:  r,
		store:     s,
		extractor: extract.New(cfg.Normalize),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Search fetches, extracts and persists a single observation.
func (s *SearchService) Search(ctx context.Context, hotelKey string, checkIn, checkOut time.Time, guests int) (domain.Observation, error) {
	if err := validateRange(checkIn, checkOut); err != nil {
		return domain.Observation{}, err
	}
	release, err := s.renderer.AcquireSession(ctx)
	if err != nil {
		return domain.Observation{}, err
	}
	defer release()
	return s.searchWithSession(ctx, hotelKey, checkIn, checkOut, guests)
}

// searchWithSession assumes the caller already owns the renderer session.
func (s *SearchService) searchWithSession(ctx context.Context, hotelKey string, checkIn, checkOut time.Time, guests int) (domain.Observation, error) {
	if err := validateRange(checkIn, checkOut); err != nil {
		// caller error, not a transient fault: no retry, no fetch
		return domain.Observation{}, err
	}
	if guests < 1 {
		guests = 1
	}

	hotel, err := s.store.GetHotel(ctx, hotelKey)
	if err != nil {
		return domain.Observation{}, err
	}

	q := domain.Query{
		HotelKey:  hotel.Key,
		HotelName: hotel.SearchName,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Guests:    guests,
	}

	html, err := retry.DoValue(ctx, "fetch_rendered_html", s.cfg.Retry, func(ctx context.Context) (string, error) {
		return s.renderer.FetchRenderedHTML(ctx, q)
	})
	if err != nil {
		observability.ObserveExtraction("fetch_failed")
		return domain.Observation{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		observability.ObserveExtraction("parse_failed")
		return domain.Observation{}, fmt.Errorf("parse rendered html for %q: %w", hotelKey, err)
	}

	res, err := s.extractor.Extract(doc, extract.Hints{ExpectedName: hotel.SearchName})
	if err != nil {
		observability.ObserveExtraction("not_found")
		return domain.Observation{}, fmt.Errorf("extract %q: %w", hotelKey, err)
	}

	name := res.Name
	if name == "" {
		name = hotel.DisplayName
	}
	obs, err := domain.NewObservation(hotel.Key, name, res.Price, res.Currency, checkIn, checkOut, s.now().UTC())
	if err != nil {
		return domain.Observation{}, err
	}
	if err := s.store.AppendObservation(ctx, obs); err != nil {
		return domain.Observation{}, fmt.Errorf("append observation for %q: %w", hotelKey, err)
	}
	observability.ObserveExtraction("ok")

	log.Info().
		Str("hotel", hotel.Key).
		Float64("price", obs.Price).
		Str("currency", obs.Currency).
		Msg("observation recorded")
	return obs, nil
}

// BatchFailure records one hotel's failure without aborting the sweep.
type BatchFailure struct {
	HotelKey string
	Err      error
}

type BatchResult struct {
	Observations []domain.Observation
	Failures     []BatchFailure
}

// SearchBatch sweeps hotels strictly one at a time, holding the renderer
// session for the whole sweep and pausing BatchDelay between hotels to stay
// under the target site's rate limits. Successes and failures come back
// separately; a single bad hotel never sinks the batch. A bad date range
// does, since every hotel shares it.
func (s *SearchService) SearchBatch(ctx context.Context, hotelKeys []string, checkIn, checkOut time.Time, guests int) (BatchResult, error) {
	if err := validateRange(checkIn, checkOut); err != nil {
		return BatchResult{}, err
	}

	release, err := s.renderer.AcquireSession(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	defer release()

	var out BatchResult
	for i, key := range hotelKeys {
		if i > 0 && s.cfg.BatchDelay > 0 {
			if !sleepCtx(ctx, s.cfg.BatchDelay) {
				return out, ctx.Err()
			}
		}
		obs, err := s.searchWithSession(ctx, key, checkIn, checkOut, guests)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			log.Warn().Str("hotel", key).Err(err).Msg("batch search failed for hotel")
			out.Failures = append(out.Failures, BatchFailure{HotelKey: key, Err: err})
			continue
		}
		out.Observations = append(out.Observations, obs)
	}
	return out, nil
}

func validateRange(checkIn, checkOut time.Time) error {
	if checkIn.IsZero() || checkOut.IsZero() || !checkIn.Before(checkOut) {
		return fmt.Errorf("%w: check-in %s, check-out %s",
			domain.ErrInvalidDateRange, checkIn.Format("2006-01-02"), checkOut.Format("2006-01-02"))
	}
	return nil
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
