package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errNotFound = errors.New("object not found")

func newBreakerWithClock(cfg CircuitBreakerConfig) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker(cfg)
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newBreakerWithClock(CircuitBreakerConfig{
		Name:             "s3:uploads",
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	})

	fail := func(context.Context) error { return errors.New("boom") }

	if err := cb.Execute(context.Background(), fail); err == nil {
		t.Fatalf("expected first failure")
	}
	if err := cb.Execute(context.Background(), fail); err == nil {
		t.Fatalf("expected second failure")
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected circuit open, got %s", cb.State())
	}

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open error, got %v", err)
	}
	if called {
		t.Fatalf("fn must not run while the circuit is open")
	}

	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected CircuitOpenError, got %T", err)
	}
	if openErr.RetryAfter != time.Minute || openErr.Name != "s3:uploads" {
		t.Fatalf("unexpected open error %+v", openErr)
	}
}

func TestCircuitBreakerHalfOpenClosesOnSuccess(t *testing.T) {
	cb, now := newBreakerWithClock(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      100 * time.Millisecond,
	})

	_ = cb.Execute(context.Background(), func(context.Context) error {
		return errors.New("boom")
	})
	*now = now.Add(100 * time.Millisecond)

	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half open, got %s", cb.State())
	}
	if err := cb.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected success in half-open, got %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("expected circuit closed, got %s", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, now := newBreakerWithClock(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
	})

	boom := func(context.Context) error { return errors.New("boom") }
	_ = cb.Execute(context.Background(), boom)
	*now = now.Add(time.Second)
	_ = cb.Execute(context.Background(), boom)

	if cb.State() != CircuitOpen {
		t.Fatalf("expected circuit open again, got %s", cb.State())
	}
}

func TestCircuitBreakerIgnoresClassifiedErrors(t *testing.T) {
	cb, _ := newBreakerWithClock(CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, errNotFound) },
	})

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return errNotFound })
		if !errors.Is(err, errNotFound) {
			t.Fatalf("expected the original error back, got %v", err)
		}
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("not-found results must not trip the breaker, got %s", cb.State())
	}
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb, _ := newBreakerWithClock(CircuitBreakerConfig{FailureThreshold: 1})

	err := cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("cancellation must not trip the breaker, got %s", cb.State())
	}
}
