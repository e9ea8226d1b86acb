package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"pricewatch/internal/domain"
)

// CompareService ranks hotels by their latest observed price. Reads go
// through the cache with a short TTL; rankings shift only when the watcher
// records a new observation.
type CompareService struct {
	store    domain.ObservationStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewCompareService(s domain.ObservationStore, c domain.Cache, ttl time.Duration) *CompareService {
	return &CompareService{store: s, cache: c, cacheTTL: ttl}
}

// Compare returns one row per input key, ascending by latest price. Hotels
// with no matching observation rank last, keeping their input order among
// themselves. Zero checkIn/checkOut means "latest overall".
func (s *CompareService) Compare(ctx context.Context, hotelKeys []string, checkIn, checkOut time.Time) ([]domain.Ranked, error) {
	key := compareCacheKey(hotelKeys, checkIn, checkOut)
	var cached []domain.Ranked
	if ok, _ := s.cache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	observed := make([]domain.Ranked, 0, len(hotelKeys))
	var missing []domain.Ranked

	for _, hk := range hotelKeys {
		row := domain.Ranked{HotelKey: hk}
		if h, err := s.store.GetHotel(ctx, hk); err == nil {
			row.Name = h.DisplayName
		}

		obs, err := s.store.LatestObservation(ctx, hk, checkIn, checkOut)
		switch {
		case err == nil:
			row.HasObservation = true
			row.LatestPrice = obs.Price
			row.Currency = obs.Currency
			row.LastUpdated = obs.RecordedAt
			if row.Name == "" {
				row.Name = obs.Name
			}
			observed = append(observed, row)
		case errors.Is(err, domain.ErrNoObservation):
			missing = append(missing, row)
		default:
			return nil, fmt.Errorf("latest observation for %q: %w", hk, err)
		}
	}

	sort.SliceStable(observed, func(i, j int) bool {
		return observed[i].LatestPrice < observed[j].LatestPrice
	})

	out := append(observed, missing...)
	_ = s.cache.Set(ctx, key, out, s.cacheTTL)
	return out, nil
}

// History returns the newest-first price history for one hotel.
func (s *CompareService) History(ctx context.Context, hotelKey string, limit int) ([]domain.Observation, error) {
	key := fmt.Sprintf("history:%s:%d", hotelKey, limit)
	var cached []domain.Observation
	if ok, _ := s.cache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	obs, err := s.store.History(ctx, hotelKey, limit)
	if err != nil {
		return nil, err
	}

	// copy before caching so callers can't mutate the cached backing array
	cp := make([]domain.Observation, len(obs))
	copy(cp, obs)
	_ = s.cache.Set(ctx, key, cp, s.cacheTTL)
	return cp, nil
}

func compareCacheKey(keys []string, checkIn, checkOut time.Time) string {
	rng := "any"
	if !checkIn.IsZero() && !checkOut.IsZero() {
		rng = checkIn.Format("2006-01-02") + ":" + checkOut.Format("2006-01-02")
	}
	return "compare:" + strings.Join(keys, ",") + ":" + rng
}
