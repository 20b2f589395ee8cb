package infra

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	StateClosed   BreakerState = iota // Normal operation
	StateOpen                         // Failing, reject requests
	StateHalfOpen                     // Probing recovery
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker isolates one backend endpoint. Safe for concurrent use.
type CircuitBreaker struct {
	name string
	mu   sync.Mutex

	state        BreakerState
	failureCount int
	successCount int
	lastFailure  time.Time

	failureThreshold int
	successThreshold int
	timeout          time.Duration

	now      func() time.Time
	onChange func(name string, state BreakerState)
}

// CircuitBreakerConfig holds configuration for creating a circuit breaker.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration

	// OnStateChange is called outside the breaker lock after every transition.
	OnStateChange func(name string, state BreakerState)
}

// DefaultCircuitBreakerConfig returns the thresholds used when config leaves them unset.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
	}
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &CircuitBreaker{
		name:             cfg.Name,
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		now:              time.Now,
		onChange:         cfg.OnStateChange,
	}
}

// Name returns the endpoint the breaker guards.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Allow reports whether a request may proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	switch cb.state {
	case StateClosed, StateHalfOpen:
		cb.mu.Unlock()
		return true

	case StateOpen:
		if cb.now().Sub(cb.lastFailure) <= cb.timeout {
			cb.mu.Unlock()
			return false
		}
		cb.state = StateHalfOpen
		cb.successCount = 0
		cb.mu.Unlock()

		slog.Info("Circuit breaker transitioning to HALF_OPEN", slog.String("name", cb.name))
		cb.notify(StateHalfOpen)
		return true

	default:
		cb.mu.Unlock()
		return false
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	changed := false
	switch cb.state {
	case StateClosed:
		cb.failureCount = 0

	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
			changed = true
		}
	}
	cb.mu.Unlock()

	if changed {
		slog.Info("Circuit breaker CLOSED (recovered)", slog.String("name", cb.name))
		cb.notify(StateClosed)
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	cb.lastFailure = cb.now()
	changed := false
	failures := 0

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		failures = cb.failureCount
		if cb.failureCount >= cb.failureThreshold {
			cb.state = StateOpen
			changed = true
		}

	case StateHalfOpen:
		// Any failure while probing reopens.
		cb.state = StateOpen
		cb.successCount = 0
		changed = true
	}
	cb.mu.Unlock()

	if changed {
		slog.Warn("Circuit breaker OPEN",
			slog.String("name", cb.name),
			slog.Int("failures", failures))
		cb.notify(StateOpen)
	}
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.mu.Unlock()

	slog.Info("Circuit breaker RESET", slog.String("name", cb.name))
	cb.notify(StateClosed)
}

func (cb *CircuitBreaker) notify(state BreakerState) {
	if cb.onChange != nil {
		cb.onChange(cb.name, state)
	}
}
