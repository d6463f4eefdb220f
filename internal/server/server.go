// Package server provides the loopback HTTP server that receives the login redirect.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/brizzai/labportal/internal/auth"
	"github.com/brizzai/labportal/internal/auth/handlers"
	"github.com/brizzai/labportal/internal/config"
	"github.com/brizzai/labportal/internal/logger"
	"github.com/brizzai/labportal/internal/server/handler"
	"github.com/brizzai/labportal/internal/session"
	"go.uber.org/zap"
)

const (
	// shutdownTimeout is the maximum time to wait for server shutdown
	shutdownTimeout = 5 * time.Second
)

var (
	// ErrCallbackTimeout means no callback arrived within session.callback_timeout.
	ErrCallbackTimeout = errors.New("timed out waiting for the login callback")
	// ErrInvalidRedirectURL indicates the redirect URL cannot be served locally.
	ErrInvalidRedirectURL = errors.New("redirect URL must be a plain http URL")
)

// CallbackServer is a short lived HTTP server bound to the redirect URL's
// host. It serves a single login callback and then shuts down.
type CallbackServer struct {
	addr    string
	path    string
	timeout time.Duration

	listener net.Listener
	server   *http.Server
	handler  *handler.Handler

	results  chan handlers.Result
	errChan  chan error
	stopOnce sync.Once
	stopErr  error
}

// NewCallbackServer creates a CallbackServer for the configured redirect URL.
// Nothing is bound until Start.
func NewCallbackServer(providerCfg *config.ProviderConfig, sessionCfg *config.SessionConfig, completer handlers.CallbackCompleter) (*CallbackServer, error) {
	addr, err := listenAddr(providerCfg.RedirectURL)
	if err != nil {
		return nil, err
	}

	s := &CallbackServer{
		addr:    addr,
		results: make(chan handlers.Result, 1),
		errChan: make(chan error, 1),
	}
	if sessionCfg != nil {
		s.timeout = sessionCfg.CallbackTimeout
	}

	svc, err := auth.NewService(providerCfg, sessionCfg, completer, s.deliver)
	if err != nil {
		return nil, err
	}
	s.path = svc.Path()
	s.handler = handler.NewHandler(svc)
	s.server = &http.Server{
		Handler:           s.handler.CreateHTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func listenAddr(redirectURL string) (string, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRedirectURL, err)
	}
	if u.Scheme != "http" || u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRedirectURL, redirectURL)
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// deliver hands the first callback result to Wait.
func (s *CallbackServer) deliver(res handlers.Result) {
	select {
	case s.results <- res:
	default:
	}
}

// Start binds the listener and serves in the background.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	go func() {
		logger.Debug("Starting callback server",
			zap.String("address", ln.Addr().String()),
			zap.String("path", s.path),
		)

		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.errChan <- fmt.Errorf("server error: %w", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *CallbackServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the callback URL on the bound address.
func (s *CallbackServer) URL() string {
	return "http://" + s.Addr() + s.path
}

// Wait blocks until the callback has been served, the server fails, ctx ends
// or session.callback_timeout elapses. The server is shut down before Wait
// returns.
func (s *CallbackServer) Wait(ctx context.Context) (*session.Session, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	select {
	case res := <-s.results:
		if err := s.Shutdown(); err != nil {
			logger.Warn("Callback server did not shut down cleanly", zap.Error(err))
		}
		return res.Session, res.Err

	case err := <-s.errChan:
		_ = s.Shutdown()
		return nil, err

	case <-ctx.Done():
		_ = s.Shutdown()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrCallbackTimeout
		}
		return nil, ctx.Err()
	}
}

// Shutdown stops the server, waiting up to five seconds for the landing
// page to be written. It is safe to call more than once.
func (s *CallbackServer) Shutdown() error {
	s.stopOnce.Do(func() {
		logger.Debug("Shutting down callback server", zap.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.stopErr = fmt.Errorf("server shutdown error: %w", err)
		}
	})
	return s.stopErr
}
