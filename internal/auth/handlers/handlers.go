package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"github.com/brizzai/labportal/internal/auth/models"
	"github.com/brizzai/labportal/internal/logger"
	"github.com/brizzai/labportal/internal/session"
	"github.com/brizzai/labportal/internal/utils"
	"go.uber.org/zap"
)

// genericAuthError is shown for every failure that is not reported by the
// identity provider itself.
const genericAuthError = "Authentication failed. Please start the login again."

// CallbackCompleter completes a login from the provider redirect.
type CallbackCompleter interface {
	HandleCallback(ctx context.Context, p session.CallbackParams) (*session.Session, error)
}

// Result is the outcome of a served callback.
type Result struct {
	Session *session.Session
	Err     error
}

// Handler handles the OAuth redirect landing view
type Handler struct {
	completer CallbackCompleter
	homeURL   string
	done      func(Result)
}

// NewHandler creates a new Handler instance. done, when set, is called once
// per completed callback after the page has been written.
func NewHandler(completer CallbackCompleter, homeURL string, done func(Result)) *Handler {
	if homeURL == "" {
		homeURL = "/"
	}
	return &Handler{
		completer: completer,
		homeURL:   homeURL,
		done:      done,
	}
}

type pageData struct {
	Title   string
	Message string
	User    string
	HomeURL string
}

var pages = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>body{font-family:sans-serif;max-width:32rem;margin:4rem auto;color:#222}a{color:#0b61a4}</style>
</head><body>{{end}}
{{define "success"}}{{template "head" .}}
<h1>{{.Title}}</h1>
<p>Signed in{{if .User}} as <strong>{{.User}}</strong>{{end}}. You can close this window and return to the terminal.</p>
<p><a href="{{.HomeURL}}">Continue to the portal</a></p>
</body></html>{{end}}
{{define "error"}}{{template "head" .}}
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
<p><a href="{{.HomeURL}}">Back to the portal</a></p>
</body></html>{{end}}
`))

// HandleAuthCallback handles the OAuth callback
func (h *Handler) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.WriteError(w, "invalid_request", "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := session.ParseCallback(r.URL.Query())
	sess, err := h.completer.HandleCallback(r.Context(), params)
	if err != nil {
		logger.Warn("Login callback failed", zap.Error(err))
		utils.WriteHTML(w, statusFor(err), pages, "error", pageData{
			Title:   "Sign-in failed",
			Message: messageFor(err),
			HomeURL: h.homeURL,
		})
		h.finish(Result{Err: err})
		return
	}

	var user *models.UserInfo
	if sess != nil {
		user = sess.User
	}
	utils.WriteHTML(w, http.StatusOK, pages, "success", pageData{
		Title:   "Signed in",
		User:    user.DisplayName(),
		HomeURL: h.homeURL,
	})
	h.finish(Result{Session: sess})
}

func (h *Handler) finish(res Result) {
	if h.done != nil {
		h.done(res)
	}
}

// messageFor keeps CSRF and exchange internals out of the page. Only the
// provider's own description is passed through.
func messageFor(err error) string {
	var perr *session.ProviderError
	if errors.As(err, &perr) {
		if perr.Description != "" {
			return "The identity provider reported: " + perr.Description
		}
		return "The identity provider reported: " + perr.Code
	}
	return genericAuthError
}

func statusFor(err error) int {
	var perr *session.ProviderError
	switch {
	case errors.As(err, &perr),
		errors.Is(err, session.ErrStateMismatch),
		errors.Is(err, session.ErrMissingCode):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrTokenExchangeFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
