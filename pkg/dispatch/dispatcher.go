package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const logPrefix = "dispatch:dispatcher"

// Retry policy defaults.
const (
	DefaultRetryDelay  = time.Second
	DefaultMaxAttempts = 60
)

// Config holds dispatcher configuration.
type Config struct {
	RetryDelay  time.Duration
	MaxAttempts int
}

// DefaultConfig returns the documented retry policy: 1s between attempts, 60 attempts.
func DefaultConfig() Config {
	return Config{
		RetryDelay:  DefaultRetryDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Error is returned when a URI could not be delivered within the retry budget
// or the caller's context ended first.
type Error struct {
	URI      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s - dispatch failed after %d attempt(s): %v", logPrefix, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Dispatcher delivers URIs through a Poster.
type Dispatcher struct {
	poster Poster
	config Config
}

// NewDispatcher creates a Dispatcher. Zero config fields use defaults.
func NewDispatcher(poster Poster, cfg Config) *Dispatcher {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Dispatcher{poster: poster, config: cfg}
}

// Config returns the effective retry policy.
func (d *Dispatcher) Config() Config {
	return d.config
}

// Dispatch posts uri, retrying failures with a fixed delay until it succeeds,
// MaxAttempts is reached, or ctx is done. Cancelling ctx stops any pending retry.
func (d *Dispatcher) Dispatch(ctx context.Context, uri string) error {
	attempts := 0
	payload := []byte(uri)

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		if err := d.poster.Post(ctx, payload); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(d.config.RetryDelay)),
		backoff.WithMaxTries(uint(d.config.MaxAttempts)),
		// attempts, not elapsed time, bound the retry
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn(fmt.Sprintf("%s - attempt %d/%d failed, retrying in %s: %v",
				logPrefix, attempts, d.config.MaxAttempts, next, err))
		}),
	)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - giving up on %s after %d attempt(s): %v", logPrefix, uri, attempts, err))
		return &Error{URI: uri, Attempts: attempts, Err: err}
	}

	if attempts > 1 {
		slog.Info(fmt.Sprintf("%s - delivered after %d attempts", logPrefix, attempts))
	}
	return nil
}
