package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/brizzai/labportal/internal/config"
)

// ErrUnsupportedProvider is returned by New for an unknown provider name.
var ErrUnsupportedProvider = errors.New("unsupported identity provider")

// Provider defines the redirect contract of an identity provider
type Provider interface {
	// AuthURL returns the authorization URL carrying the given state nonce
	AuthURL(state string) string

	// LogoutURL returns the provider logout URL that sends the user back to returnTo
	LogoutURL(returnTo string) string

	// Name returns the provider name
	Name() string
}

// New creates the provider selected by cfg.Name.
func New(ctx context.Context, cfg *config.ProviderConfig) (Provider, error) {
	switch cfg.Name {
	case config.ProviderAuth0:
		return NewAuth0Provider(cfg)
	case config.ProviderKeycloak:
		return NewKeycloakProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Name)
	}
}
