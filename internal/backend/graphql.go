package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brizzai/labportal/internal/auth/models"
	"github.com/brizzai/labportal/internal/requester"
)

var routeGraphQL = &requester.RouteConfig{
	Path:        "/graphql",
	Method:      http.MethodPost,
	Description: "GraphQL endpoint",
}

const userFields = "id email name picture"

const (
	exchangeCodeMutation = `mutation ExchangeCode($code: String!, $state: String!) {
  exchangeCode(code: $code, state: $state) { token expiresAt expiresIn user { ` + userFields + ` } }
}`
	isLoggedInQuery = `query IsLoggedIn {
  isLoggedIn { loggedIn user { ` + userFields + ` } }
}`
	meQuery = `query Me {
  me { ` + userFields + ` }
}`
	logoutMutation = `mutation Logout {
  logout
}`
	screeningQuery = `query Screening($id: ID!) {
  screening(id: $id) { id provider status flagged summary updatedAt }
}`
)

// GraphQLError is a single entry of a GraphQL "errors" array.
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// GraphQLErrors is returned when the response carries errors.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors GraphQLErrors   `json:"errors"`
}

// GraphQLClient implements Backend against the portal GraphQL API.
type GraphQLClient struct {
	requester *requester.HTTPRequester
	now       func() time.Time
}

func NewGraphQLClient(r *requester.HTTPRequester) *GraphQLClient {
	return &GraphQLClient{requester: r, now: time.Now}
}

func (c *GraphQLClient) ExchangeCode(ctx context.Context, code, state string) (*TokenGrant, error) {
	var data struct {
		ExchangeCode *struct {
			Token     string           `json:"token"`
			ExpiresAt *time.Time       `json:"expiresAt"`
			ExpiresIn int64            `json:"expiresIn"`
			User      *models.UserInfo `json:"user"`
		} `json:"exchangeCode"`
	}
	vars := map[string]interface{}{"code": code, "state": state}
	if err := c.do(ctx, exchangeCodeMutation, vars, "", &data); err != nil {
		return nil, err
	}
	if data.ExchangeCode == nil || data.ExchangeCode.Token == "" {
		return nil, fmt.Errorf("exchangeCode did not return a token")
	}
	g := data.ExchangeCode
	return grantFromWire(g.Token, g.ExpiresAt, g.ExpiresIn, g.User, c.now()), nil
}

func (c *GraphQLClient) IsLoggedIn(ctx context.Context, token string) (*LoginStatus, error) {
	var data struct {
		IsLoggedIn *struct {
			LoggedIn bool             `json:"loggedIn"`
			User     *models.UserInfo `json:"user"`
		} `json:"isLoggedIn"`
	}
	if err := c.do(ctx, isLoggedInQuery, nil, token, &data); err != nil {
		return nil, err
	}
	if data.IsLoggedIn == nil {
		return &LoginStatus{}, nil
	}
	return &LoginStatus{LoggedIn: data.IsLoggedIn.LoggedIn, User: data.IsLoggedIn.User}, nil
}

func (c *GraphQLClient) UserInfo(ctx context.Context, token string) (*models.UserInfo, error) {
	var data struct {
		Me *models.UserInfo `json:"me"`
	}
	if err := c.do(ctx, meQuery, nil, token, &data); err != nil {
		return nil, err
	}
	if data.Me == nil {
		return nil, ErrUnauthorized
	}
	return data.Me, nil
}

func (c *GraphQLClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, logoutMutation, nil, token, nil)
}

func (c *GraphQLClient) ScreeningResult(ctx context.Context, token, id string) (*ScreeningResult, error) {
	var data struct {
		Screening *ScreeningResult `json:"screening"`
	}
	if err := c.do(ctx, screeningQuery, map[string]interface{}{"id": id}, token, &data); err != nil {
		return nil, err
	}
	if data.Screening == nil {
		return nil, &StatusError{StatusCode: http.StatusNotFound, Message: "screening " + id + " not found"}
	}
	return data.Screening, nil
}

func (c *GraphQLClient) do(ctx context.Context, query string, vars map[string]interface{}, token string, out interface{}) error {
	params := map[string]interface{}{
		"body": graphQLRequest{Query: query, Variables: vars},
	}
	resp, err := c.requester.Do(ctx, routeGraphQL, params, requester.NewBearerAuth(token))
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}

	var gr graphQLResponse
	if err := json.Unmarshal(resp.Body, &gr); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(gr.Errors) > 0 {
		for _, e := range gr.Errors {
			if e.Extensions.Code == "UNAUTHENTICATED" {
				return ErrUnauthorized
			}
		}
		return gr.Errors
	}
	if out == nil || len(gr.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}
	return nil
}
