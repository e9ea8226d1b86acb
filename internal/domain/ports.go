package domain

import (
	"context"
	"time"
)

// ObservationStore is the append/query contract with the relational store.
// History is newest-first. LatestObservation filters by date range when
// checkIn/checkOut are non-zero, otherwise returns the most recent overall;
// it reports ErrNoObservation when nothing matches.
type ObservationStore interface {
	// Write paths
	AppendObservation(ctx context.Context, o Observation) error
	RegisterHotel(ctx context.Context, h Hotel) error

	// Read paths
	GetHotel(ctx context.Context, key string) (Hotel, error)
	ListHotels(ctx context.Context) ([]Hotel, error)
	History(ctx context.Context, key string, limit int) ([]Observation, error)
	LatestObservation(ctx context.Context, key string, checkIn, checkOut time.Time) (Observation, error)
}

// Renderer produces a fully rendered HTML document for a query. The page
// behind it is a single-owner resource: AcquireSession grants exclusive use
// and the returned release func must always run, failure paths included.
// Navigation timeouts are the renderer's own concern; any error counts as
// one failed attempt for the caller's retry loop.
type Renderer interface {
	AcquireSession(ctx context.Context) (release func(), err error)
	FetchRenderedHTML(ctx context.Context, q Query) (string, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Ranked is one row of a price comparison. Hotels without a matching
// observation keep their input position after all priced hotels.
type Ranked struct {
	HotelKey       string
	Name           string
	LatestPrice    float64
	Currency       string
	LastUpdated    time.Time
	HasObservation bool
}
