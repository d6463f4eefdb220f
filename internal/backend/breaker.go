package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brizzai/labportal/internal/auth/models"
	"github.com/brizzai/labportal/internal/config"
	"github.com/brizzai/labportal/internal/logger"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// Breaker wraps a Backend with circuit breaker protection. Rejected
// credentials and client errors do not count as failures; only transport
// errors and 5xx responses do.
type Breaker struct {
	inner   Backend
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreaker wraps inner. Zero-valued settings fall back to defaults.
func NewBreaker(inner Backend, cfg config.BreakerConfig) *Breaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1, // one probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: isSuccessful,
	})

	return &Breaker{inner: inner, breaker: cb}
}

func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, ErrUnauthorized) || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < 500
	}
	var gqlErr GraphQLErrors
	return errors.As(err, &gqlErr)
}

func execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	out, err := b.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

func (b *Breaker) ExchangeCode(ctx context.Context, code, state string) (*TokenGrant, error) {
	return execute(b, func() (*TokenGrant, error) {
		return b.inner.ExchangeCode(ctx, code, state)
	})
}

func (b *Breaker) IsLoggedIn(ctx context.Context, token string) (*LoginStatus, error) {
	return execute(b, func() (*LoginStatus, error) {
		return b.inner.IsLoggedIn(ctx, token)
	})
}

func (b *Breaker) UserInfo(ctx context.Context, token string) (*models.UserInfo, error) {
	return execute(b, func() (*models.UserInfo, error) {
		return b.inner.UserInfo(ctx, token)
	})
}

func (b *Breaker) Logout(ctx context.Context, token string) error {
	_, err := execute(b, func() (struct{}, error) {
		return struct{}{}, b.inner.Logout(ctx, token)
	})
	return err
}

func (b *Breaker) ScreeningResult(ctx context.Context, token, id string) (*ScreeningResult, error) {
	return execute(b, func() (*ScreeningResult, error) {
		return b.inner.ScreeningResult(ctx, token, id)
	})
}

// State returns the current circuit breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// Compile-time interface checks.
var (
	_ Backend = (*Breaker)(nil)
	_ Backend = (*RESTClient)(nil)
	_ Backend = (*GraphQLClient)(nil)
)
