package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pricewatch/internal/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts:  4,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
}

func TestDoValue_FailuresThenSuccess(t *testing.T) {
	calls := 0
	v, err := retry.DoValue(context.Background(), "fetch", fastPolicy, func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("transient")
		}
		return "html", nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if v != "html" {
		t.Fatalf("got %q", v)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 invocations, got %d", calls)
	}
}

func TestDoValue_Exhaustion(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := retry.DoValue(context.Background(), "fetch", fastPolicy, func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if calls != fastPolicy.MaxAttempts {
		t.Fatalf("expected exactly %d invocations, got %d", fastPolicy.MaxAttempts, calls)
	}

	var ex *retry.ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if ex.Op != "fetch" || ex.Attempts != fastPolicy.MaxAttempts {
		t.Fatalf("unexpected wrap: %+v", ex)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("last failure not preserved: %v", err)
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	if err := retry.Do(context.Background(), "noop", fastPolicy, func(ctx context.Context) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 invocation, got %d", calls)
	}
}

func TestDoValue_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retry.Policy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 2}

	done := make(chan error, 1)
	go func() {
		_, err := retry.DoValue(ctx, "slow", p, func(ctx context.Context) (int, error) {
			return 0, errors.New("transient")
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}

func TestDoValue_RejectsZeroAttempts(t *testing.T) {
	_, err := retry.DoValue(context.Background(), "bad", retry.Policy{}, func(ctx context.Context) (int, error) {
		t.Fatal("operation must not run")
		return 0, nil
	})
	if err == nil {
		t.Fatal("expected error for zero-attempt policy")
	}
}
