// Package normalize turns raw price text scraped off a booking page into a
// canonical (price, currency) pair. Input is internationally formatted and
// hostile: "$1,234.56", "1.234,56 EUR", "¥12000", stray labels, anything.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"pricewatch/internal/domain"
)

// Amount is a parsed price in major currency units. Precision is whatever
// the source text carried; display rounding is the caller's job.
type Amount struct {
	Price    float64
	Currency string
}

// Options control the one genuinely ambiguous case: a comma with no dot
// ("1,234"). CommaIsDecimal reads it as 1.234; with it off the comma is a
// thousands separator and the same text reads as 1234. There is no way to
// tell without a locale hint, so the choice sits in config rather than here.
type Options struct {
	CommaIsDecimal bool
}

// DefaultOptions matches the common booking-site rendering we see, which
// uses the comma as a decimal mark for most non-US locales.
var DefaultOptions = Options{CommaIsDecimal: true}

// symbol matches take precedence over code matches, and within each table
// the first hit wins. Order is fixed; no reconciliation of mixed signals.
var currencySymbols = []struct {
	Symbol string
	Code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
}

var currencyCodes = []string{"USD", "EUR", "GBP", "JPY", "INR", "CAD", "AUD"}

var codeWordRe = regexp.MustCompile(`(?i)\b(USD|EUR|GBP|JPY|INR|CAD|AUD)\b`)

// Normalize parses raw with DefaultOptions.
func Normalize(raw string) (Amount, error) {
	return NormalizeWith(raw, DefaultOptions)
}

// NormalizeWith parses raw price text. A numeric value with no currency
// signal defaults to USD; unparseable input fails with ErrNoNumericValue,
// and punctuation that cannot resolve to a single decimal separator fails
// with ErrAmbiguousFormat. Nothing here rounds.
func NormalizeWith(raw string, opts Options) (Amount, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Amount{}, domain.ErrNoNumericValue
	}

	currency, rest := detectCurrency(s)

	// whitespace inside the number ("1 234,56") carries no information
	rest = strings.Join(strings.Fields(rest), "")

	num, err := resolveSeparators(rest, opts)
	if err != nil {
		return Amount{}, err
	}

	price, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return Amount{}, domain.ErrNoNumericValue
	}

	if currency == "" {
		currency = "USD"
	}
	return Amount{Price: price, Currency: currency}, nil
}

// detectCurrency returns the detected code ("" if none) and the text with
// the matched symbol or code word stripped.
func detectCurrency(s string) (string, string) {
	for _, cs := range currencySymbols {
		if strings.Contains(s, cs.Symbol) {
			rest := strings.ReplaceAll(s, cs.Symbol, "")
			// a trailing code word ("$100 AUD") loses to the symbol but
			// must still leave the numeric remainder
			rest = codeWordRe.ReplaceAllString(rest, "")
			return cs.Code, rest
		}
	}
	if m := codeWordRe.FindString(s); m != "" {
		for _, code := range currencyCodes {
			if strings.EqualFold(m, code) {
				return code, codeWordRe.ReplaceAllString(s, "")
			}
		}
	}
	return "", s
}

// resolveSeparators rewrites s so that at most one '.' remains as the
// decimal mark. When both '.' and ',' appear the rightmost one is the
// decimal separator and the other is thousands grouping.
func resolveSeparators(s string, opts Options) (string, error) {
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")

	switch {
	case dot >= 0 && comma >= 0:
		if dot > comma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case comma >= 0:
		if opts.CommaIsDecimal {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	if strings.Count(s, ".") > 1 || strings.Count(s, ",") > 0 {
		return "", domain.ErrAmbiguousFormat
	}
	return s, nil
}
