// Package backend talks to the portal backend ("MPI server") session and
// screening endpoints, over either REST or GraphQL.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brizzai/labportal/internal/auth/models"
	"github.com/brizzai/labportal/internal/config"
	"github.com/brizzai/labportal/internal/requester"
	"go.uber.org/fx"
)

var (
	// ErrUnauthorized is returned when the backend rejects the bearer token.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrCircuitOpen is returned while the breaker refuses calls.
	ErrCircuitOpen = errors.New("backend: circuit open")
)

// StatusError reports an unexpected HTTP status from the backend.
type StatusError struct {
	StatusCode int
	RequestID  string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned status %d: %s (request %s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("backend returned status %d (request %s)", e.StatusCode, e.RequestID)
}

// TokenGrant is the result of a successful code exchange.
type TokenGrant struct {
	Token string
	// ExpiresAt is zero when the backend did not say.
	ExpiresAt time.Time
	User      *models.UserInfo
}

// LoginStatus is the backend's view of a bearer token.
type LoginStatus struct {
	LoggedIn bool
	User     *models.UserInfo
}

// ScreeningStatus is the processing state of a biosecurity screening.
type ScreeningStatus string

const (
	ScreeningPending   ScreeningStatus = "pending"
	ScreeningRunning   ScreeningStatus = "running"
	ScreeningCompleted ScreeningStatus = "completed"
	ScreeningFailed    ScreeningStatus = "failed"
)

// ScreeningResult is a third-party screening as reported by the backend.
type ScreeningResult struct {
	ID        string          `json:"id" yaml:"id"`
	Provider  string          `json:"provider" yaml:"provider"`
	Status    ScreeningStatus `json:"status" yaml:"status"`
	Flagged   bool            `json:"flagged" yaml:"flagged"`
	Summary   string          `json:"summary,omitempty" yaml:"summary,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// Done reports whether the screening reached a terminal status.
func (r *ScreeningResult) Done() bool {
	return r.Status == ScreeningCompleted || r.Status == ScreeningFailed
}

// Backend is the set of backend calls the client relies on.
type Backend interface {
	ExchangeCode(ctx context.Context, code, state string) (*TokenGrant, error)
	IsLoggedIn(ctx context.Context, token string) (*LoginStatus, error)
	UserInfo(ctx context.Context, token string) (*models.UserInfo, error)
	Logout(ctx context.Context, token string) error
	ScreeningResult(ctx context.Context, token, id string) (*ScreeningResult, error)
}

// New builds the client selected by cfg.API and wraps it with a circuit breaker.
func New(cfg *config.BackendConfig, r *requester.HTTPRequester) (Backend, error) {
	var inner Backend
	switch cfg.API {
	case config.BackendREST:
		inner = NewRESTClient(r)
	case config.BackendGraphQL, "":
		inner = NewGraphQLClient(r)
	default:
		return nil, fmt.Errorf("unsupported backend api: %s", cfg.API)
	}
	return NewBreaker(inner, cfg.Breaker), nil
}

// Module provides the backend client
var Module = fx.Module("backend",
	requester.Module,
	fx.Provide(New),
)

// grantFromWire resolves the expiry of a token grant. An absolute expiry
// wins over a relative one.
func grantFromWire(token string, expiresAt *time.Time, expiresIn int64, user *models.UserInfo, now time.Time) *TokenGrant {
	g := &TokenGrant{Token: token, User: user}
	switch {
	case expiresAt != nil && !expiresAt.IsZero():
		g.ExpiresAt = expiresAt.UTC()
	case expiresIn > 0:
		g.ExpiresAt = now.Add(time.Duration(expiresIn) * time.Second).UTC()
	}
	return g
}
