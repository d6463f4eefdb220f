package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brizzai/labportal/internal/auth"
	"github.com/brizzai/labportal/internal/config"
	"github.com/brizzai/labportal/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCompleter struct{ calls int }

func (c *countingCompleter) HandleCallback(context.Context, session.CallbackParams) (*session.Session, error) {
	c.calls++
	return &session.Session{Token: "tok"}, nil
}

func TestCreateHTTPHandler_OneShot(t *testing.T) {
	completer := &countingCompleter{}
	svc, err := auth.NewService(&config.ProviderConfig{RedirectURL: "http://127.0.0.1:8765/callback"}, nil, completer, nil)
	require.NoError(t, err)

	h := NewHandler(svc)
	srv := h.CreateHTTPHandler()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, h.Served())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=c&state=s", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, h.Served())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=c&state=s", nil))
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, 1, completer.calls)
}
