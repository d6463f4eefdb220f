// Package handler provides HTTP request handling for the callback server.
package handler

import (
	"net/http"
	"sync/atomic"

	"github.com/brizzai/labportal/internal/auth"
	"github.com/brizzai/labportal/internal/logger"
	"go.uber.org/zap"
)

// Handler manages HTTP request handling for the loopback listener.
type Handler struct {
	auth   *auth.Service
	served atomic.Bool
}

// NewHandler creates a new HTTP handler.
func NewHandler(auth *auth.Service) *Handler {
	return &Handler{
		auth: auth,
	}
}

// CreateHTTPHandler creates an HTTP handler that lets exactly one request
// reach the callback route. Later requests get 410 Gone. Every other path
// is a 404 and does not consume the callback.
func (h *Handler) CreateHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	h.auth.RegisterRoutes(mux)
	logger.Debug("Registered callback route", zap.String("path", h.auth.Path()))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == h.auth.Path() && r.Method == http.MethodGet {
			if !h.served.CompareAndSwap(false, true) {
				logger.Warn("Rejected repeated login callback", zap.String("remote", r.RemoteAddr))
				http.Error(w, "This login callback has already been used.", http.StatusGone)
				return
			}
		}
		mux.ServeHTTP(w, r)
	})
}

// Served reports whether the callback has been consumed.
func (h *Handler) Served() bool {
	return h.served.Load()
}
