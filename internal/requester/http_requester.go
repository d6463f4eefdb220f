package requester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brizzai/labportal/internal/config"
	"github.com/brizzai/labportal/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// maxBodySize caps how much of a backend response is read.
const maxBodySize = 1 << 20

// HTTPRequester handles both request building and execution
type HTTPRequester struct {
	client  *http.Client
	builder *HTTPRequestBuilder
}

type HTTPRequesterParams struct {
	fx.In

	BackendConfig *config.BackendConfig
	Builder       *HTTPRequestBuilder
}

// NewHTTPRequester creates a new HTTPRequester using the backend timeout
func NewHTTPRequester(params HTTPRequesterParams) *HTTPRequester {
	timeout := params.BackendConfig.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRequester{
		client: &http.Client{
			Timeout: timeout,
		},
		builder: params.Builder,
	}
}

// SetTimeout sets the timeout for the HTTP client
func (r *HTTPRequester) SetTimeout(timeout time.Duration) {
	r.client.Timeout = timeout
}

// Do builds and executes a single request for route.
func (r *HTTPRequester) Do(ctx context.Context, route *RouteConfig, params map[string]interface{}, auth AuthManager) (*Response, error) {
	req, err := r.builder.BuildRequest(ctx, route, params, auth)
	if err != nil {
		return nil, err
	}
	logger.Debug("backend request",
		zap.String("method", req.Method),
		zap.String("path", route.Path),
		zap.String("request_id", req.RequestID),
	)

	resp, err := r.execute(req)
	if err != nil {
		logger.Warn("backend request failed",
			zap.String("path", route.Path),
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}

// execute performs the actual HTTP request execution
func (r *HTTPRequester) execute(req *Request) (resp *Response, err error) {
	httpResp, err := r.client.Do(req.HttpRequest)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, httpResp.Body)
		if closeErr := httpResp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	bodyBytes, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       bodyBytes,
		Headers:    httpResp.Header,
		RequestID:  req.RequestID,
	}, nil
}
