package requester

import (
	"net/http"

	"github.com/brizzai/labportal/internal/auth/constants"
)

// AuthManager handles request authentication
type AuthManager interface {
	ApplyAuth(req *http.Request) error
}

// NoAuth leaves the request untouched.
type NoAuth struct{}

func (NoAuth) ApplyAuth(*http.Request) error { return nil }

// BearerAuth attaches a session token as a bearer credential
type BearerAuth struct {
	token string
}

// NewBearerAuth creates a new BearerAuth for token
func NewBearerAuth(token string) *BearerAuth {
	return &BearerAuth{token: token}
}

// ApplyAuth adds the Authorization header to the request
func (a *BearerAuth) ApplyAuth(req *http.Request) error {
	if a.token == "" {
		return nil
	}
	req.Header.Set(constants.AuthHeaderName, constants.AuthHeaderPrefix+a.token)
	return nil
}
