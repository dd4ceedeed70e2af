// Package circuitbreaker stops calling a failing dependency for a while and
// lets a few probe requests through before trusting it again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota
	// StateOpen rejects requests until the cool-down elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probes through.
	StateHalfOpen
)

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

var (
	// ErrCircuitOpen is returned while the breaker rejects requests.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when all half-open probe slots are taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// IsRejected reports whether err came from the breaker rather than the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// Config holds breaker settings.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the breaker. Default 5.
	FailureThreshold int

	// SuccessThreshold consecutive half-open successes close it. Default 2.
	SuccessThreshold int

	// Timeout is the open cool-down before probing. Default 30s.
	Timeout time.Duration

	// MaxHalfOpenRequests is the number of concurrent probes. Default 1.
	MaxHalfOpenRequests int

	// OnStateChange runs after every transition, outside the breaker lock.
	OnStateChange func(name string, from, to State)

	// IsFailure decides which errors count. Nil counts every error except
	// context cancellation by the caller.
	IsFailure func(error) bool

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the stock settings.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
		Now:                 time.Now,
	}
}

// Option configures a breaker.
type Option func(*Config)

func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

func WithMaxHalfOpenRequests(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxHalfOpenRequests = n
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		if now != nil {
			c.Now = now
		}
	}
}

// Counts are running totals.
type Counts struct {
	Requests             int
	Rejected             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker guards calls to one dependency.
type CircuitBreaker struct {
	cfg Config

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probes   int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	cfg := DefaultConfig(name)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn unless the breaker rejects it, and records the result.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// admit decides whether a request may run.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	var changed func()
	defer func() {
		cb.mu.Unlock()
		if changed != nil {
			changed()
		}
	}()

	switch cb.state {
	case StateClosed:
		cb.counts.Requests++
		return nil
	case StateOpen:
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.Timeout {
			cb.counts.Rejected++
			return ErrCircuitOpen
		}
		changed = cb.transition(StateHalfOpen)
		fallthrough
	default:
		if cb.probes >= cb.cfg.MaxHalfOpenRequests {
			cb.counts.Rejected++
			return ErrTooManyRequests
		}
		cb.probes++
		cb.counts.Requests++
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	var changed func()
	defer func() {
		cb.mu.Unlock()
		if changed != nil {
			changed()
		}
	}()

	if cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}
	if !cb.isFailure(err) {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.cfg.SuccessThreshold {
			changed = cb.transition(StateClosed)
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	switch cb.state {
	case StateClosed:
		if cb.counts.ConsecutiveFailures >= cb.cfg.FailureThreshold {
			changed = cb.transition(StateOpen)
		}
	case StateHalfOpen:
		changed = cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) isFailure(err error) bool {
	if err == nil {
		return false
	}
	if cb.cfg.IsFailure != nil {
		return cb.cfg.IsFailure(err)
	}
	return !errors.Is(err, context.Canceled)
}

// transition must run under mu. It returns the state-change callback to run
// after the lock is released, or nil.
func (cb *CircuitBreaker) transition(to State) func() {
	from := cb.state
	if from == to {
		return nil
	}
	cb.state = to
	cb.probes = 0
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	if to == StateOpen {
		cb.openedAt = cb.cfg.Now()
	}
	if fn := cb.cfg.OnStateChange; fn != nil {
		name := cb.cfg.Name
		return func() { fn(name, from, to) }
	}
	return nil
}

// State returns the current state. An open breaker whose cool-down elapsed
// still reports open until the next request probes it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a copy of the totals.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the breaker and clears the totals.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.counts = Counts{}
	cb.probes = 0
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}
