// Package retry runs an operation with bounded exponential backoff and jitter.
// It is meant for idempotent reads against the record store; writes that may
// have partially applied must not go through it.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// PermanentError stops the retry loop immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked permanent.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Config holds retry settings.
type Config struct {
	// MaxAttempts counts the first call. Default 3.
	MaxAttempts int

	// InitialDelay is the wait before the second attempt. Default 50ms.
	InitialDelay time.Duration

	// MaxDelay caps a single wait. Default 2s.
	MaxDelay time.Duration

	// Multiplier grows the delay per attempt. Default 2.
	Multiplier float64

	// JitterFactor spreads delays by ±factor. Default 0.1.
	JitterFactor float64

	// RetryIf decides whether an error is worth another attempt.
	// When nil every non-permanent error is retried.
	RetryIf func(error) bool

	// OnRetry is called before sleeping.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns the defaults listed on Config.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the first backoff delay.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

// WithJitter sets the jitter factor in [0,1].
func WithJitter(j float64) Option {
	return func(c *Config) {
		if j >= 0 && j <= 1 {
			c.JitterFactor = j
		}
	}
}

// WithRetryIf sets the retry predicate.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

// WithOnRetry sets the retry hook.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// Retrier executes operations under a Config.
type Retrier struct {
	config Config
}

// New builds a Retrier.
func New(opts ...Option) *Retrier {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Retrier{config: cfg}
}

// Do runs op until it succeeds, the budget is spent, the error is not
// retryable, or ctx is done. The last error is returned unwrapped from
// PermanentError.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if r.config.RetryIf != nil && !r.config.RetryIf(err) {
			return err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return lastErr
		case <-t.C:
		}
	}
	return lastErr
}

// DoValue is Do for operations returning a value.
func DoValue[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (r *Retrier) delay(attempt int) time.Duration {
	base := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if base > float64(r.config.MaxDelay) {
		base = float64(r.config.MaxDelay)
	}
	if r.config.JitterFactor > 0 {
		base += base * r.config.JitterFactor * (rand.Float64()*2 - 1)
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}
