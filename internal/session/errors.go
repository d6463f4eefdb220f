package session

import (
	"errors"
	"fmt"
)

var (
	// ErrStateMismatch means the callback state did not match the stored nonce.
	ErrStateMismatch = errors.New("authentication state mismatch")
	// ErrMissingCode means the callback carried no authorization code.
	ErrMissingCode = errors.New("authorization code missing from callback")
	// ErrTokenExchangeFailed means the backend rejected the code exchange.
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	// ErrSessionExpired means the token expiry is in the past.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionInvalid means the backend no longer accepts the token.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrNotLoggedIn means no session token is stored.
	ErrNotLoggedIn = errors.New("not logged in")
)

// ProviderError is an error reported by the identity provider on the redirect.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("identity provider error %s: %s", e.Code, e.Description)
	}
	return "identity provider error " + e.Code
}
