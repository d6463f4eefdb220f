// Package poll runs bounded, cancellable polling loops.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/brizzai/labportal/internal/config"
	"github.com/brizzai/labportal/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Outcome is the terminal result of a polling loop.
type Outcome int

const (
	// Resolved means an attempt reported completion.
	Resolved Outcome = iota
	// GaveUp means the attempt budget ran out; the caller should re-query
	// the authoritative source later instead of polling on.
	GaveUp
)

func (o Outcome) String() string {
	if o == Resolved {
		return "resolved"
	}
	return "gave up"
}

// Policy bounds a polling loop.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// PolicyFromConfig builds a Policy from the polling settings.
func PolicyFromConfig(cfg *config.PollingConfig) Policy {
	return Policy{MaxAttempts: cfg.MaxAttempts, Interval: cfg.Interval}
}

// ErrInvalidPolicy is returned for a policy without attempts.
var ErrInvalidPolicy = errors.New("poll: max attempts must be positive")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an attempt error as final: Until stops and returns err
// instead of trying again.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Attempt is one polling step. done reports whether value is final. An
// error is logged and counts as an unresolved attempt.
type Attempt[T any] func(ctx context.Context) (value T, done bool, err error)

// Until calls fn at most p.MaxAttempts times, p.Interval apart, until it
// reports done. The first attempt runs immediately. Cancelling ctx stops the
// loop with ctx.Err(). On GaveUp the last value seen is returned.
func Until[T any](ctx context.Context, p Policy, fn Attempt[T]) (T, Outcome, error) {
	var last T
	if p.MaxAttempts <= 0 {
		return last, GaveUp, ErrInvalidPolicy
	}

	limit := rate.Inf
	if p.Interval > 0 {
		limit = rate.Every(p.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, GaveUp, ctxErr
			}
			return last, GaveUp, err
		}

		value, done, err := fn(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, GaveUp, ctxErr
			}
			var perm *permanentError
			if errors.As(err, &perm) {
				return last, GaveUp, perm.err
			}
			logger.Warn("Poll attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		last = value
		if done {
			return value, Resolved, nil
		}
		logger.Debug("Poll attempt unresolved", zap.Int("attempt", attempt), zap.Int("max_attempts", p.MaxAttempts))
	}
	return last, GaveUp, nil
}
