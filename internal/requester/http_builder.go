package requester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brizzai/labportal/internal/auth/constants"
	"github.com/brizzai/labportal/internal/config"
	"github.com/google/uuid"
	"go.uber.org/fx"
)

// HTTPRequestBuilderParams holds the parameters for creating an HTTPRequestBuilder
type HTTPRequestBuilderParams struct {
	fx.In
	BackendConfig *config.BackendConfig
}

// HTTPRequestBuilder turns a route plus parameters into an *http.Request
type HTTPRequestBuilder struct {
	baseURL string
}

// NewHTTPRequestBuilder creates a new HTTPRequestBuilder
func NewHTTPRequestBuilder(params HTTPRequestBuilderParams) *HTTPRequestBuilder {
	return &HTTPRequestBuilder{
		baseURL: strings.TrimRight(params.BackendConfig.BaseURL, "/"),
	}
}

// BuildRequest builds a request for route. Path placeholders like {id} are
// filled from params, params["body"] is sent as JSON, and everything else
// becomes a query parameter.
func (b *HTTPRequestBuilder) BuildRequest(ctx context.Context, route *RouteConfig, params map[string]interface{}, auth AuthManager) (*Request, error) {
	if route == nil {
		return nil, fmt.Errorf("route config is nil")
	}

	path, rest := b.expandPath(route.Path, params)
	target := b.addQueryParams(b.baseURL+path, rest)

	body, contentType, err := b.createRequestBody(rest)
	if err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, route.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range route.Headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set(constants.RequestIDHeader, requestID)

	if auth == nil {
		auth = NoAuth{}
	}
	if err := auth.ApplyAuth(httpReq); err != nil {
		return nil, fmt.Errorf("failed to apply authentication: %w", err)
	}

	return &Request{
		URL:         target,
		Method:      route.Method,
		RequestID:   requestID,
		HttpRequest: httpReq,
	}, nil
}

// expandPath substitutes {name} placeholders and returns the params that
// were not consumed.
func (b *HTTPRequestBuilder) expandPath(path string, params map[string]interface{}) (string, map[string]interface{}) {
	rest := make(map[string]interface{}, len(params))
	for key, value := range params {
		placeholder := "{" + key + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(fmt.Sprintf("%v", value)))
			continue
		}
		rest[key] = value
	}
	return path, rest
}

func (b *HTTPRequestBuilder) addQueryParams(baseURL string, params map[string]interface{}) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}

	q := u.Query()
	for key, value := range params {
		if key == "body" {
			continue
		}
		q.Set(key, fmt.Sprintf("%v", value))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func (b *HTTPRequestBuilder) createRequestBody(params map[string]interface{}) (io.Reader, string, error) {
	body, ok := params["body"]
	if !ok {
		return nil, "", nil
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	return bytes.NewBuffer(jsonData), "application/json", nil
}
