package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brizzai/labportal/internal/auth/models"
	"github.com/brizzai/labportal/internal/requester"
)

var (
	routeToken = &requester.RouteConfig{
		Path:        "/auth/token",
		Method:      http.MethodPost,
		Description: "Exchange an authorization code for a session token",
	}
	routeSession = &requester.RouteConfig{
		Path:        "/auth/session",
		Method:      http.MethodGet,
		Description: "Report whether the bearer token is logged in",
	}
	routeUserInfo = &requester.RouteConfig{
		Path:        "/auth/userinfo",
		Method:      http.MethodGet,
		Description: "Profile of the bearer",
	}
	routeLogout = &requester.RouteConfig{
		Path:        "/auth/logout",
		Method:      http.MethodPost,
		Description: "Invalidate the bearer token server-side",
	}
	routeScreening = &requester.RouteConfig{
		Path:        "/screenings/{id}",
		Method:      http.MethodGet,
		Description: "Fetch a screening result",
	}
)

// RESTClient implements Backend against the JSON REST endpoints.
type RESTClient struct {
	requester *requester.HTTPRequester
	now       func() time.Time
}

func NewRESTClient(r *requester.HTTPRequester) *RESTClient {
	return &RESTClient{requester: r, now: time.Now}
}

type restTokenResponse struct {
	Token     string           `json:"token"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	ExpiresIn int64            `json:"expires_in,omitempty"`
	User      *models.UserInfo `json:"user,omitempty"`
}

type restSessionResponse struct {
	LoggedIn bool             `json:"logged_in"`
	User     *models.UserInfo `json:"user,omitempty"`
}

func (c *RESTClient) ExchangeCode(ctx context.Context, code, state string) (*TokenGrant, error) {
	params := map[string]interface{}{
		"body": map[string]string{"code": code, "state": state},
	}
	var out restTokenResponse
	if err := c.call(ctx, routeToken, params, nil, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("token response did not contain a token")
	}
	return grantFromWire(out.Token, out.ExpiresAt, out.ExpiresIn, out.User, c.now()), nil
}

func (c *RESTClient) IsLoggedIn(ctx context.Context, token string) (*LoginStatus, error) {
	var out restSessionResponse
	if err := c.call(ctx, routeSession, nil, requester.NewBearerAuth(token), &out); err != nil {
		return nil, err
	}
	return &LoginStatus{LoggedIn: out.LoggedIn, User: out.User}, nil
}

func (c *RESTClient) UserInfo(ctx context.Context, token string) (*models.UserInfo, error) {
	var out models.UserInfo
	if err := c.call(ctx, routeUserInfo, nil, requester.NewBearerAuth(token), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RESTClient) Logout(ctx context.Context, token string) error {
	return c.call(ctx, routeLogout, nil, requester.NewBearerAuth(token), nil)
}

func (c *RESTClient) ScreeningResult(ctx context.Context, token, id string) (*ScreeningResult, error) {
	var out ScreeningResult
	params := map[string]interface{}{"id": id}
	if err := c.call(ctx, routeScreening, params, requester.NewBearerAuth(token), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RESTClient) call(ctx context.Context, route *requester.RouteConfig, params map[string]interface{}, auth requester.AuthManager, out interface{}) error {
	resp, err := c.requester.Do(ctx, route, params, auth)
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", route.Path, err)
	}
	return nil
}

// maxErrorRunes bounds how much of a raw error body ends up in a StatusError.
const maxErrorRunes = 200

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func checkStatus(resp *requester.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.OK() {
		return nil
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if json.Unmarshal(resp.Body, &body) == nil {
		msg = body.Message
		if msg == "" {
			msg = body.Error
		}
	}
	if msg == "" {
		msg = truncate(strings.TrimSpace(string(resp.Body)), maxErrorRunes)
	}
	return &StatusError{StatusCode: resp.StatusCode, RequestID: resp.RequestID, Message: msg}
}
