// Package retry implements the backoff policy used when the session
// talks to slow external services: the archiver appliance, the
// current-experiment script and DAQ control connections.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// NonRetryableError marks a failure that repeating cannot fix, such as
// a PV that was never archived or a malformed request.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error so Do gives up on it immediately
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err carries the give-up marker
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config describes one backoff policy
type Config struct {
	// MaxAttempts is the total number of tries, including the first
	MaxAttempts int
	// InitialDelay is the wait after the first failure
	InitialDelay time.Duration
	// MaxDelay caps the growing wait
	MaxDelay time.Duration
	// Multiplier grows the wait between attempts
	Multiplier float64
	// AddJitter spreads concurrent sessions apart
	AddJitter bool
	// RetryIf classifies an error as worth another attempt. Nil means
	// everything except a NonRetryable error is retried.
	RetryIf func(error) bool
}

// Quick is tuned for session startup: many fast attempts so a device
// or appliance that is just coming up does not stall the load.
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   1.5,
		AddJitter:    true,
	}
}

func (c Config) validate() error {
	if c.InitialDelay < 0 || c.MaxDelay < 0 || c.Multiplier < 0 {
		return errors.New("retry: delays and multiplier must not be negative")
	}
	if c.MaxDelay > 0 && c.InitialDelay > 0 && c.MaxDelay < c.InitialDelay {
		return errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier > 1000 {
		c.Multiplier = 1000
	}
	return c
}

// next grows the delay toward MaxDelay, guarding against overflow
func (c Config) next(delay time.Duration) time.Duration {
	grown := float64(delay) * c.Multiplier
	if grown > float64(c.MaxDelay) || grown > float64(1<<62) {
		return c.MaxDelay
	}
	return time.Duration(grown)
}

// wait sleeps for the backoff period unless the context ends first
func wait(ctx context.Context, d time.Duration, jitter bool) error {
	if jitter && d >= 4 {
		// Up to 25% extra so parallel loads spread out.
		d += time.Duration(rand.Int64N(int64(d / 4)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn until it succeeds, the attempts run out, the error is
// classified as permanent or the context ends.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
		}

		if err := wait(ctx, delay, cfg.AddJitter); err != nil {
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, err)
		}
		delay = cfg.next(delay)
	}
}

// DoWithResult is Do for operations that produce a value
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
