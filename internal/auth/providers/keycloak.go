package providers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/brizzai/labportal/internal/auth/constants"
	"github.com/brizzai/labportal/internal/config"
	"github.com/brizzai/labportal/internal/logger"
	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// KeycloakProvider works against any OIDC issuer that publishes a discovery
// document; Keycloak realms are the deployed case.
type KeycloakProvider struct {
	oauth2Config  *oauth2.Config
	endSessionURL string
	audience      string
}

func NewKeycloakProvider(ctx context.Context, cfg *config.ProviderConfig) (*KeycloakProvider, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("keycloak provider requires an issuer")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	var claims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to read discovery document: %w", err)
	}
	if claims.EndSessionEndpoint == "" {
		logger.Warn("Issuer does not advertise an end_session_endpoint", zap.String("issuer", cfg.Issuer))
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = constants.DefaultScopes
	}

	return &KeycloakProvider{
		oauth2Config: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Endpoint:    provider.Endpoint(),
			Scopes:      scopes,
		},
		endSessionURL: claims.EndSessionEndpoint,
		audience:      cfg.Audience,
	}, nil
}

func (p *KeycloakProvider) AuthURL(state string) string {
	opts := []oauth2.AuthCodeOption{}
	if p.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", p.audience))
	}
	return p.oauth2Config.AuthCodeURL(state, opts...)
}

// LogoutURL returns an empty string when the issuer has no end-session endpoint.
func (p *KeycloakProvider) LogoutURL(returnTo string) string {
	if p.endSessionURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("client_id", p.oauth2Config.ClientID)
	if returnTo != "" {
		q.Set("post_logout_redirect_uri", returnTo)
	}
	return p.endSessionURL + "?" + q.Encode()
}

func (p *KeycloakProvider) Name() string {
	return string(config.ProviderKeycloak)
}
