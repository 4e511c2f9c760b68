// Package retry runs operations with bounded exponential backoff, giving up
// immediately on errors that cannot succeed on a later attempt.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/itsluminous/Letters/internal/backend"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second

	// MaxBackoff bounds a single wait however many attempts are configured.
	MaxBackoff = 10 * time.Minute
)

// Clock abstracts waiting for testability.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Policy configures retries. The zero value uses the defaults.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration

	// Retryable classifies failures; nil means backend.IsRetryable.
	Retryable func(error) bool

	Clock  Clock
	Logger *slog.Logger
}

// Default returns the standard policy: three attempts, one second initial delay.
func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, InitialDelay: DefaultInitialDelay}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.Retryable == nil {
		p.Retryable = backend.IsRetryable
	}
	if p.Clock == nil {
		p.Clock = realClock{}
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

// Backoff returns the wait after the given zero-based failed attempt:
// InitialDelay * 2^attempt, capped at MaxBackoff.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.InitialDelay
	if d <= 0 {
		return 0
	}
	if d >= MaxBackoff {
		return MaxBackoff
	}
	for range max(attempt, 0) {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	return d
}

// Do runs fn until it succeeds, fails with a non-retryable error, or
// MaxAttempts attempts have failed, in which case the last error is
// returned. There is no wait after the final attempt. Cancelling ctx during
// a wait returns ctx.Err().
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Value(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !p.Retryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts-1 {
			return zero, err
		}

		backoff := p.Backoff(attempt)
		p.Logger.Debug("retrying operation",
			"op", op,
			"attempt", attempt+2,
			"max_attempts", p.MaxAttempts,
			"backoff", backoff,
			"error", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-p.Clock.After(backoff):
		}
	}
}
