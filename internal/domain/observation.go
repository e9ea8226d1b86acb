package domain

import (
	"fmt"
	"time"
)

// Observation is one recorded price/currency reading for a hotel and
// date range. Append-only; never mutated after creation.
type Observation struct {
	ID         int64
	HotelKey   string
	Name       string
	Price      float64 // major currency units (dollars, not cents)
	Currency   string  // 3-letter uppercase, USD when the page gave no signal
	CheckIn    time.Time
	CheckOut   time.Time
	RecordedAt time.Time
}

// NewObservation validates the persistence invariants up front so no
// caller can hand the store a malformed record.
func NewObservation(hotelKey, name string, price float64, currency string, checkIn, checkOut, recordedAt time.Time) (Observation, error) {
	if hotelKey == "" {
		return Observation{}, fmt.Errorf("observation: empty hotel key")
	}
	if price < 0 {
		return Observation{}, fmt.Errorf("observation: negative price %v", price)
	}
	if currency == "" {
		return Observation{}, fmt.Errorf("observation: empty currency")
	}
	if !checkIn.Before(checkOut) {
		return Observation{}, ErrInvalidDateRange
	}
	return Observation{
		HotelKey:   hotelKey,
		Name:       name,
		Price:      price,
		Currency:   currency,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		RecordedAt: recordedAt,
	}, nil
}

// Hotel groups observations under a stable opaque key. DisplayName and
// SearchName may change on re-registration; the key never does.
type Hotel struct {
	Key         string
	DisplayName string
	SearchName  string // query string sent to the booking site
	CreatedAt   time.Time
}

// Query describes a single hotel/date-range search handed to the renderer.
type Query struct {
	HotelKey  string
	HotelName string
	CheckIn   time.Time
	CheckOut  time.Time
	Guests    int
}
