package providers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/brizzai/labportal/internal/auth/constants"
	"github.com/brizzai/labportal/internal/config"
	"golang.org/x/oauth2"
)

type Auth0Provider struct {
	oauth2Config *oauth2.Config
	baseURL      string
	audience     string
}

func NewAuth0Provider(cfg *config.ProviderConfig) (*Auth0Provider, error) {
	if cfg.Domain == "" {
		return nil, fmt.Errorf("auth0 provider requires a domain")
	}
	base := tenantURL(cfg.Domain)

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = constants.DefaultScopes
	}

	return &Auth0Provider{
		oauth2Config: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/authorize",
				TokenURL: base + "/oauth/token",
			},
		},
		baseURL:  base,
		audience: cfg.Audience,
	}, nil
}

func (p *Auth0Provider) AuthURL(state string) string {
	opts := []oauth2.AuthCodeOption{}
	if p.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", p.audience))
	}
	return p.oauth2Config.AuthCodeURL(state, opts...)
}

func (p *Auth0Provider) LogoutURL(returnTo string) string {
	q := url.Values{}
	q.Set("client_id", p.oauth2Config.ClientID)
	if returnTo != "" {
		q.Set("returnTo", returnTo)
	}
	return p.baseURL + "/v2/logout?" + q.Encode()
}

func (p *Auth0Provider) Name() string {
	return string(config.ProviderAuth0)
}

// tenantURL accepts either a bare tenant domain or a full URL.
func tenantURL(domain string) string {
	domain = strings.TrimRight(domain, "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}
