package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrAllFailed is returned when every backend in a [FallbackGroup] fails or has
// an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures failover behaviour for a [FallbackGroup]. Each
// backend gets its own circuit breaker built from CircuitBreaker; the retry
// fields control how often a single backend is retried before the group moves
// on to the next one.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// MaxRetries is the number of additional attempts made against one backend
	// before failing over. Zero disables retries; hosted model APIs that shed
	// load with transient 429/5xx responses benefit from one or two.
	MaxRetries int

	// RetryInitialInterval is the first backoff delay between retries.
	// Defaults to the backoff package's standard initial interval.
	RetryInitialInterval time.Duration
}

// fallbackEntry pairs a backend with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup wraps a primary and zero or more fallback instances of the same
// backend type. When the primary fails (or its circuit breaker is open), the
// next healthy fallback is tried in registration order. The pipeline uses this
// to route LLM calls to a cheaper model when the preferred one is unavailable.
//
// FallbackGroup is safe for concurrent use once all fallbacks are registered.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
// Additional fallbacks are registered via [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	cbCfg := cfg.CircuitBreaker
	cbCfg.Name = primaryName
	return &FallbackGroup[T]{
		entries: []fallbackEntry[T]{
			{
				name:    primaryName,
				value:   primary,
				breaker: NewCircuitBreaker(cbCfg),
			},
		},
		cfg: cfg,
	}
}

// AddFallback appends a fallback backend. Fallbacks are tried in the order they
// are added, after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// call runs fn against one entry through its breaker, retrying transient
// failures per the group's retry policy. An open breaker is never retried.
func (fg *FallbackGroup[T]) call(entry *fallbackEntry[T], fn func(T) error) error {
	attempt := func() error {
		return entry.breaker.Execute(func() error {
			return fn(entry.value)
		})
	}
	if fg.cfg.MaxRetries <= 0 {
		return attempt()
	}
	bo := backoff.NewExponentialBackOff()
	if fg.cfg.RetryInitialInterval > 0 {
		bo.InitialInterval = fg.cfg.RetryInitialInterval
	}
	return backoff.Retry(func() error {
		err := attempt()
		if errors.Is(err, ErrCircuitOpen) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithMaxRetries(bo, uint64(fg.cfg.MaxRetries)))
}

// Execute tries fn against each backend in order until one succeeds.
// Circuit-breaker-open entries are skipped. Returns [ErrAllFailed] wrapped with
// the last error if every backend fails.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	var lastErr error
	for i := range fg.entries {
		entry := &fg.entries[i]
		err := fg.call(entry, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping backend (circuit open)", "backend", entry.name)
		} else {
			slog.Warn("backend failed, trying next",
				"backend", entry.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// ExecuteWithResult tries fn against each backend in the group until one
// succeeds, returning both the result value and error. This is a package-level
// function because Go does not support method-level type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := fg.call(entry, func(v T) error {
			var innerErr error
			result, innerErr = fn(v)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping backend (circuit open)", "backend", entry.name)
		} else {
			slog.Warn("backend failed, trying next",
				"backend", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
