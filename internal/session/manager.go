// Package session owns the login, verification and logout cycle of the
// client against the identity provider and the portal backend. All session
// state lives in a storage.Store under the keys in keys.go.
package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/brizzai/labportal/internal/auth/constants"
	"github.com/brizzai/labportal/internal/auth/models"
	"github.com/brizzai/labportal/internal/auth/providers"
	"github.com/brizzai/labportal/internal/backend"
	"github.com/brizzai/labportal/internal/config"
	"github.com/brizzai/labportal/internal/logger"
	"github.com/brizzai/labportal/internal/storage"
	"github.com/brizzai/labportal/internal/tracer"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Session is the locally stored authentication state.
type Session struct {
	Token string
	// ExpiresAt is zero when the expiry is unknown.
	ExpiresAt time.Time
	User      *models.UserInfo
}

// Status is the outcome of a verification.
type Status struct {
	LoggedIn bool
	User     *models.UserInfo
	// Reason is set when a stored session was torn down.
	Reason error
}

// CallbackParams are the query parameters of the provider redirect.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallback extracts the callback parameters from a redirect query.
func ParseCallback(q url.Values) CallbackParams {
	return CallbackParams{
		Code:             q.Get(constants.ParamCode),
		State:            q.Get(constants.ParamState),
		Error:            q.Get(constants.ParamError),
		ErrorDescription: q.Get(constants.ParamErrorDescription),
	}
}

// Params holds the dependencies of a Manager
type Params struct {
	fx.In

	Store          storage.Store
	Provider       providers.Provider
	Backend        backend.Backend
	Config         *config.SessionConfig
	ProviderConfig *config.ProviderConfig
}

// Manager implements the session lifecycle.
type Manager struct {
	store     storage.Store
	provider  providers.Provider
	backend   backend.Backend
	cfg       *config.SessionConfig
	returnURL string

	now      func() time.Time
	newNonce func() string
}

// NewManager creates a Manager
func NewManager(p Params) *Manager {
	returnURL := ""
	if p.ProviderConfig != nil {
		returnURL = p.ProviderConfig.LogoutReturnURL
	}
	if returnURL == "" && p.Config != nil {
		returnURL = p.Config.HomeURL
	}
	cfg := p.Config
	if cfg == nil {
		cfg = &config.SessionConfig{}
	}
	return &Manager{
		store:     p.Store,
		provider:  p.Provider,
		backend:   p.Backend,
		cfg:       cfg,
		returnURL: returnURL,
		now:       time.Now,
		newNonce:  oauth2.GenerateVerifier,
	}
}

// BeginLogin stores a fresh state nonce and returns the provider
// authorization URL carrying it. The nonce is durable before the URL is
// handed out.
func (m *Manager) BeginLogin(ctx context.Context) (authURL string, err error) {
	ctx, span := tracer.StartSpan(ctx, "session.BeginLogin")
	defer func() { tracer.End(span, err) }()

	state := m.newNonce()
	if err := storage.Set(ctx, m.store, KeyAuthState, state); err != nil {
		return "", fmt.Errorf("failed to persist login state: %w", err)
	}

	logger.Debug("Login started", zap.String("provider", m.provider.Name()))
	return m.provider.AuthURL(state), nil
}

// HandleCallback completes a login from the provider redirect. The stored
// state nonce is removed at the end of every attempt, successful or not.
func (m *Manager) HandleCallback(ctx context.Context, p CallbackParams) (sess *Session, err error) {
	ctx, span := tracer.StartSpan(ctx, "session.HandleCallback")
	defer func() { tracer.End(span, err) }()

	defer func() {
		if rmErr := storage.Remove(context.WithoutCancel(ctx), m.store, KeyAuthState); rmErr != nil {
			logger.Warn("Failed to clear login state", zap.Error(rmErr))
		}
	}()

	if p.Error != "" {
		return nil, &ProviderError{Code: p.Error, Description: p.ErrorDescription}
	}

	expected, found, err := m.store.Get(ctx, KeyAuthState)
	if err != nil {
		return nil, fmt.Errorf("failed to read login state: %w", err)
	}
	if !found || expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(p.State)) != 1 {
		logger.Warn("Callback state does not match the issued nonce", zap.Bool("nonce_found", found))
		return nil, ErrStateMismatch
	}

	if p.Code == "" {
		return nil, ErrMissingCode
	}

	grant, err := m.backend.ExchangeCode(ctx, p.Code, p.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
	}

	sess = &Session{Token: grant.Token, ExpiresAt: grant.ExpiresAt, User: grant.User}
	if sess.ExpiresAt.IsZero() {
		if exp, ok := TokenExpiry(grant.Token); ok {
			sess.ExpiresAt = exp
		}
	}

	b, err := m.sessionBatch(sess)
	if err != nil {
		return nil, err
	}
	if err := m.store.Write(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	logger.Info("Session established", zap.String("user", sess.User.DisplayName()))
	return sess, nil
}

func (m *Manager) sessionBatch(sess *Session) (*storage.Batch, error) {
	b := storage.NewBatch().Set(KeyToken, sess.Token)
	if sess.ExpiresAt.IsZero() {
		b.Remove(KeyTokenExpiry)
	} else {
		b.Set(KeyTokenExpiry, sess.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if sess.User == nil {
		b.Remove(KeyUserInfo)
	} else {
		raw, err := json.Marshal(sess.User)
		if err != nil {
			return nil, fmt.Errorf("failed to encode user info: %w", err)
		}
		b.Set(KeyUserInfo, string(raw))
	}
	return b, nil
}

// VerifySession reports whether the stored token is a live session. Expiry
// is checked locally first; an expired token is torn down without any
// network call. Otherwise the backend is asked, and any failure to get a
// positive answer tears the session down.
func (m *Manager) VerifySession(ctx context.Context) (status *Status, err error) {
	ctx, span := tracer.StartSpan(ctx, "session.VerifySession")
	defer func() {
		if status != nil {
			span.SetAttributes(tracer.BoolAttr("session.logged_in", status.LoggedIn))
		}
		tracer.End(span, err)
	}()

	token, found, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		return &Status{}, fmt.Errorf("failed to read session: %w", err)
	}
	if !found || token == "" {
		return &Status{}, nil
	}

	if exp, ok := m.localExpiry(ctx, token); ok && !exp.After(m.now()) {
		logger.Info("Session expired", zap.Time("expired_at", exp))
		return m.teardownStatus(ctx, ErrSessionExpired)
	}

	vctx, cancel := m.verifyContext(ctx)
	defer cancel()

	remote, err := m.backend.IsLoggedIn(vctx, token)
	if err != nil {
		logger.Warn("Session verification failed", zap.Error(err))
		return m.teardownStatus(ctx, fmt.Errorf("%w: %w", ErrSessionInvalid, err))
	}
	if !remote.LoggedIn {
		return m.teardownStatus(ctx, ErrSessionInvalid)
	}

	user := remote.User
	if user != nil {
		m.cacheUser(ctx, token, user)
	} else {
		user = m.cachedUser(ctx)
	}
	return &Status{LoggedIn: true, User: user}, nil
}

// FetchUserInfo loads the profile of the current session. A 401 from the
// backend is treated like a failed verification.
func (m *Manager) FetchUserInfo(ctx context.Context) (user *models.UserInfo, err error) {
	ctx, span := tracer.StartSpan(ctx, "session.FetchUserInfo")
	defer func() { tracer.End(span, err) }()

	token, found, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !found || token == "" {
		return nil, ErrNotLoggedIn
	}

	vctx, cancel := m.verifyContext(ctx)
	defer cancel()

	user, err = m.backend.UserInfo(vctx, token)
	if errors.Is(err, backend.ErrUnauthorized) {
		if tdErr := m.teardown(ctx); tdErr != nil {
			return nil, tdErr
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	m.cacheUser(ctx, token, user)
	return user, nil
}

// AbandonLogin drops the state nonce of a login whose callback never
// arrived, so the nonce cannot be used later.
func (m *Manager) AbandonLogin(ctx context.Context) (err error) {
	ctx, span := tracer.StartSpan(ctx, "session.AbandonLogin")
	defer func() { tracer.End(span, err) }()

	if err := storage.Remove(ctx, m.store, KeyAuthState); err != nil {
		return fmt.Errorf("failed to clear login state: %w", err)
	}
	return nil
}

// Logout notifies the backend on a best-effort basis, clears the local
// session and returns the provider logout URL.
func (m *Manager) Logout(ctx context.Context) (logoutURL string, err error) {
	ctx, span := tracer.StartSpan(ctx, "session.Logout")
	defer func() { tracer.End(span, err) }()

	token, found, getErr := m.store.Get(ctx, KeyToken)
	if getErr != nil {
		logger.Warn("Failed to read session token before logout", zap.Error(getErr))
	}
	if found && token != "" {
		vctx, cancel := m.verifyContext(ctx)
		if err := m.backend.Logout(vctx, token); err != nil {
			logger.Warn("Backend logout failed, clearing local session anyway", zap.Error(err))
		}
		cancel()
	}

	if err := m.teardown(ctx); err != nil {
		return "", err
	}
	return m.provider.LogoutURL(m.returnURL), nil
}

// Current returns the stored session without contacting the backend.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	token, found, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !found || token == "" {
		return nil, ErrNotLoggedIn
	}
	sess := &Session{Token: token, User: m.cachedUser(ctx)}
	if exp, ok := m.storedExpiry(ctx); ok {
		sess.ExpiresAt = exp
	}
	return sess, nil
}

// teardown removes every session key in one write.
func (m *Manager) teardown(ctx context.Context) error {
	if err := storage.Remove(context.WithoutCancel(ctx), m.store, sessionKeys...); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (m *Manager) teardownStatus(ctx context.Context, reason error) (*Status, error) {
	if err := m.teardown(ctx); err != nil {
		return &Status{Reason: reason}, err
	}
	return &Status{Reason: reason}, nil
}

func (m *Manager) verifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.VerifyTimeout > 0 {
		return context.WithTimeout(ctx, m.cfg.VerifyTimeout)
	}
	return context.WithCancel(ctx)
}

// localExpiry prefers the exp claim of the token over the stored expiry.
func (m *Manager) localExpiry(ctx context.Context, token string) (time.Time, bool) {
	if exp, ok := TokenExpiry(token); ok {
		return exp, true
	}
	return m.storedExpiry(ctx)
}

func (m *Manager) storedExpiry(ctx context.Context) (time.Time, bool) {
	raw, found, err := m.store.Get(ctx, KeyTokenExpiry)
	if err != nil || !found {
		return time.Time{}, false
	}
	exp, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logger.Debug("Ignoring malformed stored expiry", zap.String("value", raw))
		return time.Time{}, false
	}
	return exp, true
}

func (m *Manager) cachedUser(ctx context.Context) *models.UserInfo {
	raw, found, err := m.store.Get(ctx, KeyUserInfo)
	if err != nil || !found {
		return nil
	}
	var user models.UserInfo
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil
	}
	return &user
}

// cacheUser rewrites the token alongside the user info so the two are
// never stored apart.
func (m *Manager) cacheUser(ctx context.Context, token string, user *models.UserInfo) {
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	b := storage.NewBatch().Set(KeyToken, token).Set(KeyUserInfo, string(raw))
	if err := m.store.Write(ctx, b); err != nil {
		logger.Warn("Failed to cache user info", zap.Error(err))
	}
}

// Module provides the session manager
var Module = fx.Module("session",
	fx.Provide(NewManager),
)
