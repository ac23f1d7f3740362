// Package breaker implements the circuit breaker pattern guarding calls
// into the Primary storage backend: once failures accumulate past a
// threshold the breaker opens and fails fast, periodically probing in a
// half-open state before fully closing again.
package breaker

import (
	"context"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes breaker behavior.
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	Timeout          time.Duration // time Open before probing (half-open)
	HalfOpenMaxCalls int           // calls allowed through while half-open
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Stats is a snapshot of breaker activity, exposed for monitoring.
type Stats struct {
	State               State
	TotalCalls          uint64
	SuccessfulCalls     uint64
	FailedCalls         uint64
	ConsecutiveFailures int
	CircuitOpenedCount  uint64
	LastFailureTime     time.Time
	LastStateChangeTime time.Time
}

// ErrOpen is returned by Call when the circuit is open and the call was
// rejected without being attempted.
type ErrOpen struct{}

func (ErrOpen) Error() string { return "circuit breaker is open" }

// CircuitBreaker guards calls to a potentially-failing dependency.
type CircuitBreaker struct {
	cfg Config

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	halfOpenCalls       int
	openedAt            time.Time
	lastStateChange     time.Time

	totalCalls      uint64
	successfulCalls uint64
	failedCalls     uint64
	circuitOpened   uint64
	lastFailure     time.Time
}

// New constructs a closed circuit breaker.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	return &CircuitBreaker{cfg: cfg, state: Closed, lastStateChange: time.Now()}
}

// allow decides whether a call may proceed right now, transitioning
// Open->HalfOpen once the timeout has elapsed.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		return true
	case Open:
		if time.Since(cb.openedAt) >= cb.cfg.Timeout {
			cb.state = HalfOpen
			cb.halfOpenCalls = 0
			cb.lastStateChange = time.Now()
			return cb.admitHalfOpenLocked()
		}
		return false
	case HalfOpen:
		return cb.admitHalfOpenLocked()
	default:
		return true
	}
}

func (cb *CircuitBreaker) admitHalfOpenLocked() bool {
	if cb.halfOpenCalls >= cb.cfg.HalfOpenMaxCalls {
		return false
	}
	cb.halfOpenCalls++
	return true
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.successfulCalls++
	cb.consecutiveFailures = 0
	if cb.state == HalfOpen {
		cb.state = Closed
		cb.lastStateChange = time.Now()
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failedCalls++
	cb.lastFailure = time.Now()
	cb.consecutiveFailures++

	if cb.state == HalfOpen {
		cb.openLocked()
		return
	}
	if cb.state == Closed && cb.consecutiveFailures >= cb.cfg.FailureThreshold {
		cb.openLocked()
	}
}

func (cb *CircuitBreaker) openLocked() {
	cb.state = Open
	cb.openedAt = time.Now()
	cb.lastStateChange = cb.openedAt
	cb.circuitOpened++
}

// Call invokes fn if the circuit allows it, recording the outcome. If
// the circuit is open, fn is never invoked and ErrOpen is returned.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	cb.mu.Lock()
	cb.totalCalls++
	cb.mu.Unlock()

	if !cb.allow() {
		return ErrOpen{}
	}

	err := fn(ctx)
	if err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

// State reports the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of breaker counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{
		State:               cb.state,
		TotalCalls:          cb.totalCalls,
		SuccessfulCalls:     cb.successfulCalls,
		FailedCalls:         cb.failedCalls,
		ConsecutiveFailures: cb.consecutiveFailures,
		CircuitOpenedCount:  cb.circuitOpened,
		LastFailureTime:     cb.lastFailure,
		LastStateChangeTime: cb.lastStateChange,
	}
}

// Reset forces the breaker back to Closed, clearing failure counters.
// Intended for manual operator intervention or test setup.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = Closed
	cb.consecutiveFailures = 0
	cb.halfOpenCalls = 0
	cb.lastStateChange = time.Now()
}
