package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDateRange is a caller error and is never retried.
	ErrInvalidDateRange = errors.New("check-in must be before check-out")

	// ErrNotFound: no selector strategy or text scan produced a price.
	ErrNotFound = errors.New("no price found in document")

	// ErrNoNumericValue: the candidate text held nothing parseable.
	ErrNoNumericValue = errors.New("no numeric value")

	// ErrAmbiguousFormat: punctuation could not be resolved into a
	// single decimal separator.
	ErrAmbiguousFormat = errors.New("ambiguous numeric format")

	// ErrHotelNotFound: the store has no hotel under the given key.
	ErrHotelNotFound = errors.New("hotel not found")

	// ErrNoObservation: the store has no observation matching the query.
	ErrNoObservation = errors.New("no observation recorded")
)

// FetchError marks a transient renderer failure. The retry layer treats
// anything wrapped in it as one failed attempt.
type FetchError struct {
	Query Query
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch rendered html for %q: %v", e.Query.HotelKey, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
