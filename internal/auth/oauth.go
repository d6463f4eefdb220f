package auth

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/brizzai/labportal/internal/auth/handlers"
	"github.com/brizzai/labportal/internal/config"
)

// Service represents the login redirect service
type Service struct {
	callbackPath string
	handler      *handlers.Handler
}

// NewService creates a new Service. The callback is mounted on the path of
// the configured redirect URL.
func NewService(providerCfg *config.ProviderConfig, sessionCfg *config.SessionConfig, completer handlers.CallbackCompleter, done func(handlers.Result)) (*Service, error) {
	path, err := CallbackPath(providerCfg.RedirectURL)
	if err != nil {
		return nil, err
	}

	homeURL := ""
	if sessionCfg != nil {
		homeURL = sessionCfg.HomeURL
	}

	return &Service{
		callbackPath: path,
		handler:      handlers.NewHandler(completer, homeURL, done),
	}, nil
}

// CallbackPath returns the path the provider redirects the browser to. A
// redirect URL without a path lands on "/".
func CallbackPath(redirectURL string) (string, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL %q: %w", redirectURL, err)
	}
	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}

// RegisterRoutes registers the redirect landing route. The route matches the
// callback path exactly, so "/" does not swallow requests like /favicon.ico.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	pattern := s.callbackPath
	if strings.HasSuffix(pattern, "/") {
		pattern += "{$}"
	}
	mux.HandleFunc(pattern, s.handler.HandleAuthCallback)
}

// Path returns the path the callback is served on.
func (s *Service) Path() string {
	return s.callbackPath
}
