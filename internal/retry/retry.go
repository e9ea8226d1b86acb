// Package retry wraps fallible operations with bounded exponential backoff.
package retry

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy bounds a retry loop. MaxAttempts is required and finite; nothing
// here retries forever.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// ExhaustedError carries the last failure after every attempt was spent.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// DoValue runs fn up to p.MaxAttempts times, sleeping
// min(initial*multiplier^attempt, max) plus up to 10% jitter between
// attempts. The sleep is context-aware; cancellation surfaces as ctx.Err().
func DoValue[T any](ctx context.Context, op string, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, fmt.Errorf("%s: retry policy needs at least one attempt", op)
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().Str("op", op).Int("attempt", attempt+1).Msg("retry succeeded")
			}
			return v, nil
		}
		lastErr = err
		log.Warn().Str("op", op).Int("attempt", attempt+1).Int("max", p.MaxAttempts).Err(err).Msg("attempt failed")

		if attempt == p.MaxAttempts-1 {
			break
		}
		if !sleepCtx(ctx, jitter(p.delay(attempt))) {
			return zero, ctx.Err()
		}
	}
	return zero, &ExhaustedError{Op: op, Attempts: p.MaxAttempts, Err: lastErr}
}

// Do is DoValue for operations without a result.
func Do(ctx context.Context, op string, p Policy, fn func(context.Context) error) error {
	_, err := DoValue(ctx, op, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (p Policy) delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// jitter adds up to +10% using crypto/rand so concurrent loops never
// synchronize on the same schedule.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return d
	}
	f := float64(b[0]) / 255.0
	return d + time.Duration(0.1*f*float64(d))
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
