package infra

import (
	"testing"
	"time"
)

// fakeClock lets tests move the breaker past its timeout without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(failures, successes int, timeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: failures,
		SuccessThreshold: successes,
		Timeout:          timeout,
	})
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_AllowInClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	if !cb.Allow() {
		t.Error("Expected Allow() to return true in CLOSED state")
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state CLOSED, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 2, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.GetState() != StateClosed {
		t.Error("Should still be CLOSED after 2 failures")
	}

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Errorf("Expected OPEN after 3 failures, got %s", cb.GetState())
	}
	if cb.Allow() {
		t.Error("Expected Allow() to return false in OPEN state")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(2, 1, time.Minute)

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	if cb.GetState() != StateClosed {
		t.Errorf("Non-consecutive failures must not open the breaker, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb, clock := newTestBreaker(2, 1, 50*time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatal("Expected OPEN state")
	}

	clock.advance(60 * time.Millisecond)

	if !cb.Allow() {
		t.Error("Expected Allow() to return true after timeout (half-open)")
	}
	if cb.GetState() != StateHalfOpen {
		t.Errorf("Expected HALF_OPEN, got %s", cb.GetState())
	}

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Errorf("Failed trial call should reopen, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_ClosesOnSuccess(t *testing.T) {
	cb, clock := newTestBreaker(2, 2, 10*time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	clock.advance(15 * time.Millisecond)
	cb.Allow()

	cb.RecordSuccess()
	if cb.GetState() != StateHalfOpen {
		t.Error("Should still be HALF_OPEN after 1 success")
	}

	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED after 2 successes, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_StateChangeHook(t *testing.T) {
	var seen []BreakerState
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "symbols",
		FailureThreshold: 1,
		OnStateChange: func(name string, s BreakerState) {
			if name != "symbols" {
				t.Errorf("unexpected breaker name %q", name)
			}
			seen = append(seen, s)
		},
	})

	cb.RecordFailure()
	cb.Reset()

	if len(seen) != 2 || seen[0] != StateOpen || seen[1] != StateClosed {
		t.Errorf("Expected [OPEN CLOSED], got %v", seen)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	if cb.GetState() != StateOpen {
		t.Fatal("Expected OPEN state")
	}

	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Errorf("Expected CLOSED after Reset, got %s", cb.GetState())
	}
	if !cb.Allow() {
		t.Error("Expected Allow() to return true after Reset")
	}
}
