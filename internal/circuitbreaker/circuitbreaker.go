package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the breaker is open.
var ErrOpen = errors.New("circuit breaker open")

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// State is the breaker state (Closed, Open, HalfOpen).
type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string
	// OnStateChange is called outside the breaker lock after every transition.
	OnStateChange func(from, to State)
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// CircuitBreaker stops calling a failing upstream for Timeout after
// FailureThreshold consecutive failures, then lets probes through until
// SuccessThreshold of them succeed.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	component        string
	onStateChange    func(from, to State)
	now              func() time.Time
}

// New creates a CircuitBreaker, filling zero config values with defaults.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		component:        cfg.Component,
		onStateChange:    cfg.OnStateChange,
		now:              cfg.Now,
	}
}

// Call runs fn unless the breaker is open. Context cancellation is not
// counted as an upstream failure.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	if err != nil && ctx.Err() != nil {
		return err
	}
	cb.after(err)
	return err
}

// Component returns the name this breaker guards, used as a metric label.
func (cb *CircuitBreaker) Component() string {
	return cb.component
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	if cb.state != StateOpen {
		cb.mu.Unlock()
		return nil
	}
	if cb.now().Sub(cb.openedAt) < cb.timeout {
		cb.mu.Unlock()
		return ErrOpen
	}
	cb.state = StateHalfOpen
	cb.successCount = 0
	cb.mu.Unlock()
	cb.notify(StateOpen, StateHalfOpen)
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	from := cb.state
	to := from
	if err != nil {
		cb.failureCount++
		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			to = StateOpen
			cb.openedAt = cb.now()
			cb.failureCount = 0
		}
	} else {
		cb.failureCount = 0
		cb.successCount++
		if cb.state == StateHalfOpen && cb.successCount >= cb.successThreshold {
			to = StateClosed
			cb.successCount = 0
		}
	}
	cb.state = to
	cb.mu.Unlock()
	if to != from {
		cb.notify(from, to)
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}
