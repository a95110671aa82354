// Package retry provides bounded retries with exponential backoff for
// idempotent remote calls.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config bounds the retry loop. Attempts counts calls, not waits: 3 means at
// most two waits between calls. Values below 1 behave as a single attempt.
type Config struct {
	Attempts   int
	BaseWait   time.Duration
	MaxWait    time.Duration
	Multiplier float64
	Jitter     float64 // fraction of the wait randomized both ways, 0..1
}

// DefaultConfig suits short interactive runs against a remote server.
func DefaultConfig() Config {
	return Config{
		Attempts:   3,
		BaseWait:   250 * time.Millisecond,
		MaxWait:    5 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// wait returns the backoff after the given 1-based attempt.
func (c Config) wait(attempt int) time.Duration {
	w := float64(c.BaseWait) * math.Pow(c.Multiplier, float64(attempt-1))
	if c.MaxWait > 0 && w > float64(c.MaxWait) {
		w = float64(c.MaxWait)
	}
	if c.Jitter > 0 {
		w += w * c.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(w)
}

// Error marks an error as worth retrying. Errors not wrapped with Retryable
// stop the loop immediately.
type Error struct {
	Err error
}

func (e Error) Error() string { return e.Err.Error() }

func (e Error) Unwrap() error { return e.Err }

// Retryable marks err as retryable. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return Error{Err: err}
}

// IsRetryable reports whether err or anything it wraps was marked with
// Retryable.
func IsRetryable(err error) bool {
	var re Error
	return errors.As(err, &re)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempt
// budget is spent, or ctx is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for calls that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == cfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.wait(attempt)):
		}
	}
	return zero, lastErr
}
