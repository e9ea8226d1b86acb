// Package extract locates the best price/name/rating candidates in a
// rendered booking page. Markup on these sites churns constantly, so every
// field runs an ordered list of selector strategies and the price path
// degrades all the way down to scanning visible text. A missing selector is
// never an error; only a document with no usable price at all is.
package extract

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"pricewatch/internal/domain"
	"pricewatch/internal/normalize"
)

// Result is the transient outcome of one extraction. Consumed immediately
// by the pipeline, never persisted.
type Result struct {
	Price     float64
	Currency  string
	Name      string
	Rating    float64
	HasRating bool
}

// Hints narrow candidate selection when the caller already knows what it
// searched for.
type Hints struct {
	ExpectedName string
}

type Extractor struct {
	opts normalize.Options
}

func New(opts normalize.Options) *Extractor {
	return &Extractor{opts: opts}
}

// Strategy lists run in order of trust: semantic test-id markers first,
// class-name heuristics next, generic document structure last.
var nameSelectors = []string{
	`[data-testid="title"]`,
	`[data-testid*="name"]`,
	`[class*="hotel-name"]`,
	`[class*="property-name"]`,
	`[class*="listing-title"]`,
	`h1`,
}

var priceSelectors = []string{
	`[data-testid*="price"]`,
	`[data-price]`,
	`[class*="price"]`,
	`[class*="total"]`,
}

var ratingSelectors = []string{
	`[data-testid*="rating"]`,
	`[class*="review-score"]`,
	`[class*="rating"]`,
}

// priceTokenRe pulls currency-symbol-or-digits substrings out of free text
// for the last-resort scan.
var priceTokenRe = regexp.MustCompile(`(?i)(?:[$€£¥₹]\s?\d[\d.,]*|(?:USD|EUR|GBP|JPY|INR|CAD|AUD)\s?\d[\d.,]*|\d[\d.,]*\s?(?:USD|EUR|GBP|JPY|INR|CAD|AUD))`)

var ratingRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Extract returns the first price candidate that normalizes to a positive
// amount, plus best-effort name and rating. It fails only with ErrNotFound.
func (e *Extractor) Extract(doc *goquery.Document, hints Hints) (Result, error) {
	res := Result{}

	res.Name = e.extractName(doc, hints)

	amount, ok := e.extractPrice(doc)
	if !ok {
		amount, ok = e.scanText(doc)
	}
	if !ok {
		return Result{}, domain.ErrNotFound
	}
	res.Price = amount.Price
	res.Currency = amount.Currency

	if r, ok := e.extractRating(doc); ok {
		res.Rating = r
		res.HasRating = true
	}
	return res, nil
}

func (e *Extractor) extractName(doc *goquery.Document, hints Hints) string {
	for _, sel := range nameSelectors {
		var name string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if t := cleanText(s.Text()); t != "" {
				name = t
				return false
			}
			return true
		})
		if name != "" {
			return name
		}
	}
	return strings.TrimSpace(hints.ExpectedName)
}

func (e *Extractor) extractPrice(doc *goquery.Document) (normalize.Amount, bool) {
	var found normalize.Amount
	ok := false
	for _, sel := range priceSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			candidate := cleanText(s.Text())
			// a data-price attribute beats the node text when present
			if v, has := s.Attr("data-price"); has && strings.TrimSpace(v) != "" {
				candidate = strings.TrimSpace(v)
			}
			a, err := normalize.NormalizeWith(candidate, e.opts)
			if err == nil && a.Price > 0 {
				found = a
				ok = true
				return false
			}
			return true
		})
		if ok {
			return found, true
		}
	}
	return normalize.Amount{}, false
}

// scanText is the fallback when no structured marker survives a markup
// change: walk visible text and normalize every price-shaped token in
// document order.
func (e *Extractor) scanText(doc *goquery.Document) (normalize.Amount, bool) {
	text := visibleText(doc)
	for _, tok := range priceTokenRe.FindAllString(text, -1) {
		a, err := normalize.NormalizeWith(tok, e.opts)
		if err == nil && a.Price > 0 {
			return a, true
		}
	}
	return normalize.Amount{}, false
}

func (e *Extractor) extractRating(doc *goquery.Document) (float64, bool) {
	for _, sel := range ratingSelectors {
		var rating float64
		found := false
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			m := ratingRe.FindString(s.Text())
			if m == "" {
				return true
			}
			if v, err := strconv.ParseFloat(m, 64); err == nil {
				rating = v
				found = true
				return false
			}
			return true
		})
		if found {
			return rating, true
		}
	}
	return 0, false
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// visibleText flattens the document body, skipping script/style subtrees
// that goquery's Text() would otherwise include.
func visibleText(doc *goquery.Document) string {
	var buf bytes.Buffer
	body := doc.Find("body")
	nodes := body.Nodes
	if len(nodes) == 0 {
		nodes = doc.Selection.Nodes
	}
	for _, n := range nodes {
		visibleTextRecursive(n, &buf)
	}
	return buf.String()
}

func visibleTextRecursive(n *html.Node, buf *bytes.Buffer) {
	if n == nil {
		return
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	}
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
		buf.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visibleTextRecursive(c, buf)
	}
}
