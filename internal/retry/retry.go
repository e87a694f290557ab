// Package retry runs calls to remote model APIs with bounded exponential
// backoff. Only failures classified as transient are retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure for retry purposes
type Kind int

const (
	// KindPermanent failures are returned immediately
	KindPermanent Kind = iota
	// KindRateLimited means the remote asked the caller to slow down
	KindRateLimited
	// KindUnavailable means the remote is overloaded or failing
	KindUnavailable
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	default:
		return "permanent"
	}
}

// Retryable reports whether failures of this kind should be retried
func (k Kind) Retryable() bool {
	return k == KindRateLimited || k == KindUnavailable
}

// Error attaches a Kind to an underlying error
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap classifies err. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Classify returns the Kind carried by err, or KindPermanent
func Classify(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindPermanent
}

// Config configures exponential backoff retry behavior
type Config struct {
	MaxAttempts int           // Total attempts including the first
	BaseDelay   time.Duration // Delay before the second attempt
	MaxDelay    time.Duration // Upper bound on a single delay, 0 for none
	Multiplier  float64       // Growth factor applied after each delay
}

// DefaultConfig returns 3 attempts starting at 2s and doubling
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2.0,
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. Context cancellation ends the wait immediately.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1
	}

	delay := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Classify(err).Retryable() {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, fmt.Errorf("giving up after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
