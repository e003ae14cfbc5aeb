package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitOpenError is returned while the breaker rejects calls.
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	retryAfter := max(e.RetryAfter, 0)
	if e.Name == "" {
		return fmt.Sprintf("%v: retry in %s", ErrCircuitOpen, retryAfter)
	}
	return fmt.Sprintf("%v for %s: retry in %s", ErrCircuitOpen, e.Name, retryAfter)
}

func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

type CircuitBreakerState string

const (
	CircuitClosed   CircuitBreakerState = "closed"
	CircuitOpen     CircuitBreakerState = "open"
	CircuitHalfOpen CircuitBreakerState = "half_open"
)

type CircuitBreakerConfig struct {
	Name              string
	FailureThreshold  int
	SuccessThreshold  int
	OpenTimeout       time.Duration
	HalfOpenMaxFlight int
	// IsFailure decides whether an error counts against the backend. Errors it
	// rejects, such as a missing object, are returned untouched and count as
	// healthy responses. Defaults to every non-nil error.
	IsFailure func(error) bool
}

// CircuitBreaker stops calling a remote store after repeated failures and
// probes it again once OpenTimeout has elapsed.
type CircuitBreaker struct {
	mu  sync.Mutex
	cfg CircuitBreakerConfig
	now func() time.Time

	state        CircuitBreakerState
	failures     int
	successes    int
	openUntil    time.Time
	halfInFlight int
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 10 * time.Second
	}
	if cfg.HalfOpenMaxFlight <= 0 {
		cfg.HalfOpenMaxFlight = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		cfg:   cfg,
		now:   time.Now,
		state: CircuitClosed,
	}
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refreshLocked(cb.now())
	return cb.state
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		// The caller gave up; that says nothing about the backend.
		cb.release()
	case err != nil && cb.cfg.IsFailure(err):
		cb.recordFailure()
	default:
		cb.recordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.refreshLocked(now)

	switch cb.state {
	case CircuitOpen:
		return cb.openErrLocked(now)
	case CircuitHalfOpen:
		if cb.halfInFlight >= cb.cfg.HalfOpenMaxFlight {
			return cb.openErrLocked(now)
		}
		cb.halfInFlight++
	}
	return nil
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitHalfOpen {
		cb.failures = 0
		return
	}
	cb.releaseLocked()
	cb.successes++
	if cb.successes >= cb.cfg.SuccessThreshold {
		cb.resetLocked(CircuitClosed)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.tripLocked()
		return
	}
	cb.failures++
	if cb.failures >= cb.cfg.FailureThreshold {
		cb.tripLocked()
	}
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitHalfOpen {
		cb.releaseLocked()
	}
}

func (cb *CircuitBreaker) releaseLocked() {
	if cb.halfInFlight > 0 {
		cb.halfInFlight--
	}
}

func (cb *CircuitBreaker) refreshLocked(now time.Time) {
	if cb.state == CircuitOpen && !now.Before(cb.openUntil) {
		cb.resetLocked(CircuitHalfOpen)
	}
}

func (cb *CircuitBreaker) tripLocked() {
	cb.resetLocked(CircuitOpen)
	cb.openUntil = cb.now().Add(cb.cfg.OpenTimeout)
}

func (cb *CircuitBreaker) resetLocked(state CircuitBreakerState) {
	cb.state = state
	cb.failures = 0
	cb.successes = 0
	cb.halfInFlight = 0
}

func (cb *CircuitBreaker) openErrLocked(now time.Time) error {
	return &CircuitOpenError{
		Name:       cb.cfg.Name,
		RetryAfter: max(cb.openUntil.Sub(now), 0),
	}
}
