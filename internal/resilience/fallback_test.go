package resilience

import (
	"errors"
	"testing"
	"time"
)

func newStringGroup(cfg FallbackConfig) *FallbackGroup[string] {
	fg := NewFallbackGroup("gpt-4o", "gpt-4o", cfg)
	fg.AddFallback("gpt-4o-mini", "gpt-4o-mini")
	return fg
}

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	fg := newStringGroup(FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	var called string
	err := fg.Execute(func(model string) error {
		called = model
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != "gpt-4o" {
		t.Fatalf("called = %q, want the primary model", called)
	}
}

func TestFallbackGroup_PrimaryFailFallbackSuccess(t *testing.T) {
	fg := newStringGroup(FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	var called string
	err := fg.Execute(func(model string) error {
		if model == "gpt-4o" {
			return errTest
		}
		called = model
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != "gpt-4o-mini" {
		t.Fatalf("called = %q, want the fallback model", called)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	fg := newStringGroup(FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	err := fg.Execute(func(string) error {
		return errTest
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_CircuitBreakerSkipsOpenBackend(t *testing.T) {
	fg := newStringGroup(FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	})

	// Fail the primary enough to open its breaker.
	for i := 0; i < 2; i++ {
		_ = fg.Execute(func(model string) error {
			if model == "gpt-4o" {
				return errTest
			}
			return nil
		})
	}

	// Primary's breaker is open now; calls should land on the fallback.
	var called string
	err := fg.Execute(func(model string) error {
		called = model
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != "gpt-4o-mini" {
		t.Fatalf("called = %q, want the fallback (primary circuit open)", called)
	}
}

func TestFallbackGroup_RetriesTransientFailure(t *testing.T) {
	fg := NewFallbackGroup("gpt-4o", "gpt-4o", FallbackConfig{
		CircuitBreaker:       CircuitBreakerConfig{MaxFailures: 10},
		MaxRetries:           2,
		RetryInitialInterval: time.Millisecond,
	})
	fg.AddFallback("gpt-4o-mini", "gpt-4o-mini")

	calls := map[string]int{}
	err := fg.Execute(func(model string) error {
		calls[model]++
		if model == "gpt-4o" && calls[model] < 3 {
			return errTest
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls["gpt-4o"] != 3 {
		t.Errorf("primary called %d times, want 3 (two retries)", calls["gpt-4o"])
	}
	if calls["gpt-4o-mini"] != 0 {
		t.Errorf("fallback called %d times, want 0 (primary recovered)", calls["gpt-4o-mini"])
	}
}

func TestFallbackGroup_RetryDoesNotProbeOpenBreaker(t *testing.T) {
	fg := NewFallbackGroup("gpt-4o", "gpt-4o", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  1,
			ResetTimeout: time.Hour,
		},
		MaxRetries:           5,
		RetryInitialInterval: time.Millisecond,
	})

	calls := 0
	_ = fg.Execute(func(string) error {
		calls++
		return errTest
	})
	// The first failure opens the breaker; retries must stop instead of
	// burning the retry budget against an open circuit.
	if calls != 1 {
		t.Fatalf("backend called %d times, want 1", calls)
	}
}

func TestExecuteWithResult_Success(t *testing.T) {
	fg := NewFallbackGroup(10, "ten", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("twenty", 20)

	result, err := ExecuteWithResult(fg, func(v int) (string, error) {
		if v == 10 {
			return "from-ten", nil
		}
		return "from-twenty", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "from-ten" {
		t.Fatalf("result = %q, want from-ten", result)
	}
}

func TestExecuteWithResult_Failover(t *testing.T) {
	fg := NewFallbackGroup(10, "ten", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("twenty", 20)

	result, err := ExecuteWithResult(fg, func(v int) (string, error) {
		if v == 10 {
			return "", errTest
		}
		return "from-twenty", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "from-twenty" {
		t.Fatalf("result = %q, want from-twenty", result)
	}
}

func TestExecuteWithResult_AllFail(t *testing.T) {
	fg := NewFallbackGroup(10, "ten", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	_, err := ExecuteWithResult(fg, func(int) (string, error) {
		return "", errTest
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
