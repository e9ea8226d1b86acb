package app_test

import (
	"context"
	"testing"
	"time"

	"pricewatch/internal/app"
	"pricewatch/internal/domain"
)

type fakeCache struct {
	store  map[string][]byte
	ranked map[string][]domain.Ranked
	obs    map[string][]domain.Observation
	sets   int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	_, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *[]domain.Ranked:
		*d = c.ranked[key]
	case *[]domain.Observation:
		*d = c.obs[key]
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	c.sets++
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = nil
	switch t := v.(type) {
	case []domain.Ranked:
		if c.ranked == nil {
			c.ranked = map[string][]domain.Ranked{}
		}
		c.ranked[key] = t
	case []domain.Observation:
		if c.obs == nil {
			c.obs = map[string][]domain.Observation{}
		}
		c.obs[key] = t
	}
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error { return nil }

func seedObservation(store *fakeStore, key string, price float64, recorded time.Time) {
	o := domain.Observation{
		HotelKey: key, Name: key, Price: price, Currency: "USD",
		CheckIn: checkIn, CheckOut: checkOut, RecordedAt: recorded,
	}
	store.latest[key] = o
	store.history[key] = append([]domain.Observation{o}, store.history[key]...)
}

func TestCompare_OrderingAndCompleteness(t *testing.T) {
	store := newFakeStore(
		domain.Hotel{Key: "pricey", DisplayName: "Pricey"},
		domain.Hotel{Key: "cheap", DisplayName: "Cheap"},
		domain.Hotel{Key: "silent-1", DisplayName: "Silent One"},
		domain.Hotel{Key: "mid", DisplayName: "Mid"},
		domain.Hotel{Key: "silent-2", DisplayName: "Silent Two"},
	)
	now := time.Now().UTC()
	seedObservation(store, "pricey", 400, now)
	seedObservation(store, "cheap", 80, now)
	seedObservation(store, "mid", 200, now)

	svc := app.NewCompareService(store, &fakeCache{}, time.Minute)
	in := []string{"pricey", "cheap", "silent-1", "mid", "silent-2"}

	out, err := svc.Compare(context.Background(), in, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("output length %d != input length %d", len(out), len(in))
	}

	wantOrder := []string{"cheap", "mid", "pricey", "silent-1", "silent-2"}
	for i, want := range wantOrder {
		if out[i].HotelKey != want {
			t.Fatalf("position %d: got %s, want %s (full: %+v)", i, out[i].HotelKey, want, out)
		}
	}

	// non-decreasing among priced hotels
	for i := 1; i < 3; i++ {
		if out[i].LatestPrice < out[i-1].LatestPrice {
			t.Fatalf("prices not non-decreasing: %+v", out[:3])
		}
	}
	// observation-less hotels carry no price and keep input order
	if out[3].HasObservation || out[4].HasObservation {
		t.Fatalf("silent hotels must have no observation: %+v", out[3:])
	}
}

func TestCompare_DateFilter(t *testing.T) {
	store := newFakeStore(domain.Hotel{Key: "h", DisplayName: "H"})
	seedObservation(store, "h", 150, time.Now().UTC())

	svc := app.NewCompareService(store, &fakeCache{}, time.Minute)

	// matching range finds it
	out, err := svc.Compare(context.Background(), []string{"h"}, checkIn, checkOut)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !out[0].HasObservation || out[0].LatestPrice != 150 {
		t.Fatalf("got %+v", out[0])
	}

	// a different range has no observation
	out, err = svc.Compare(context.Background(), []string{"h"}, checkIn.AddDate(0, 1, 0), checkOut.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out[0].HasObservation {
		t.Fatalf("expected no observation for foreign range: %+v", out[0])
	}
}

func TestCompare_CacheHitSkipsStore(t *testing.T) {
	store := newFakeStore(domain.Hotel{Key: "h", DisplayName: "H"})
	seedObservation(store, "h", 100, time.Now().UTC())
	cache := &fakeCache{}
	svc := app.NewCompareService(store, cache, time.Minute)

	first, err := svc.Compare(context.Background(), []string{"h"}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// mutate the store; a cached compare must not see it
	seedObservation(store, "h", 999, time.Now().UTC())

	second, err := svc.Compare(context.Background(), []string{"h"}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if second[0].LatestPrice != first[0].LatestPrice {
		t.Fatalf("expected cached price %v, got %v", first[0].LatestPrice, second[0].LatestPrice)
	}
}

func TestHistory_CopiesBeforeCaching(t *testing.T) {
	store := newFakeStore(domain.Hotel{Key: "h", DisplayName: "H"})
	now := time.Now().UTC()
	seedObservation(store, "h", 100, now.Add(-time.Hour))
	seedObservation(store, "h", 120, now)

	svc := app.NewCompareService(store, &fakeCache{}, time.Minute)
	obs, err := svc.History(context.Background(), "h", 10)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(obs))
	}
	// newest first
	if obs[0].Price != 120 || obs[1].Price != 100 {
		t.Fatalf("history not newest-first: %+v", obs)
	}
}
