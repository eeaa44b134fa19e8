// Package resilience provides circuit breaker and backend failover primitives
// for the hosted model APIs the pipeline depends on.
//
// Every pipeline stage that talks to a remote LLM or transcription service
// runs its calls through a [CircuitBreaker], a classic three-state breaker
// (closed → open → half-open) that stops hammering a backend that keeps
// failing. [FallbackGroup] composes multiple instances of any backend type
// with per-entry breakers so a failing primary model is automatically
// bypassed in favour of healthy fallbacks, with optional exponential-backoff
// retries per backend.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is in
// the open state and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed is the normal operating state. All calls are forwarded.
	StateClosed State = iota

	// StateOpen means the breaker tripped after too many consecutive failures.
	// Calls are rejected immediately with [ErrCircuitOpen] until the reset
	// timeout elapses.
	StateOpen

	// StateHalfOpen is the probe state entered after the reset timeout. A
	// limited number of calls are allowed through; if they succeed the breaker
	// closes, otherwise it re-opens.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the breaker in log messages, typically the backend name.
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before transitioning to
	// half-open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the maximum number of probe calls allowed in the
	// half-open state before the breaker decides whether to close or re-open.
	// Default: 3.
	HalfOpenMax int
}

// CircuitBreaker implements the three-state circuit breaker pattern.
// It is safe for concurrent use from multiple goroutines.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu         sync.Mutex
	state      State
	failures   int
	lastFail   time.Time
	probes     int
	probeFails int
}

// NewCircuitBreaker creates a [CircuitBreaker] with the supplied configuration.
// Zero-value config fields are replaced with the documented defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		state:        StateClosed,
	}
}

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn. In the half-open state a limited number
// of probe calls are permitted.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFail) >= cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.probes = 0
			cb.probeFails = 0
			slog.Info("circuit breaker transitioning to half-open",
				"breaker", cb.name)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}

	case StateHalfOpen:
		if cb.probes >= cb.halfOpenMax {
			// Probe budget exhausted, stay open.
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	// Half-open accounting happens before the call so concurrent probes
	// cannot exceed the budget.
	probing := cb.state == StateHalfOpen
	if probing {
		cb.probes++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.recordFailure(probing)
	} else {
		cb.recordSuccess(probing)
	}
	return err
}

// recordFailure handles failure accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) recordFailure(probing bool) {
	cb.lastFail = time.Now()

	if probing {
		cb.probeFails++
		// Any failure while probing immediately re-opens.
		cb.state = StateOpen
		cb.failures = cb.maxFailures
		slog.Warn("circuit breaker re-opened from half-open",
			"breaker", cb.name)
		return
	}

	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("circuit breaker opened",
			"breaker", cb.name,
			"consecutive_failures", cb.failures)
	}
}

// recordSuccess handles success accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) recordSuccess(probing bool) {
	if probing {
		if cb.probes-cb.probeFails >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
			cb.probes = 0
			cb.probeFails = 0
			slog.Info("circuit breaker closed after successful probes",
				"breaker", cb.name)
		}
		return
	}

	// A success in the closed state clears the failure streak.
	cb.failures = 0
}

// State returns the current [State] of the breaker. If the breaker is open and
// the reset timeout has elapsed, the returned state is [StateHalfOpen] (the
// actual transition happens on the next [Execute] call).
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFail) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset manually forces the breaker back to [StateClosed], clearing all
// failure counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.probeFails = 0
	slog.Info("circuit breaker manually reset", "breaker", cb.name)
}
