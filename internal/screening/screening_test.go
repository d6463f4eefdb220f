package screening

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/brizzai/labportal/internal/backend"
	"github.com/brizzai/labportal/internal/poll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend answers ScreeningResult from a fixed script.
type scriptedBackend struct {
	backend.Backend
	script []func() (*backend.ScreeningResult, error)
	calls  int
	token  string
}

func (s *scriptedBackend) ScreeningResult(_ context.Context, token, id string) (*backend.ScreeningResult, error) {
	s.token = token
	step := s.script[len(s.script)-1]
	if s.calls < len(s.script) {
		step = s.script[s.calls]
	}
	s.calls++
	return step()
}

func status(st backend.ScreeningStatus) func() (*backend.ScreeningResult, error) {
	return func() (*backend.ScreeningResult, error) {
		return &backend.ScreeningResult{ID: "scr-1", Provider: "aclid", Status: st}, nil
	}
}

func failing(err error) func() (*backend.ScreeningResult, error) {
	return func() (*backend.ScreeningResult, error) { return nil, err }
}

func TestWait(t *testing.T) {
	tests := []struct {
		name        string
		script      []func() (*backend.ScreeningResult, error)
		wantOutcome poll.Outcome
		wantStatus  backend.ScreeningStatus
		wantErr     error
		wantCalls   int
	}{
		{
			name:        "completes after running",
			script:      []func() (*backend.ScreeningResult, error){status(backend.ScreeningPending), status(backend.ScreeningRunning), status(backend.ScreeningCompleted)},
			wantOutcome: poll.Resolved,
			wantStatus:  backend.ScreeningCompleted,
			wantCalls:   3,
		},
		{
			name:        "failed is terminal",
			script:      []func() (*backend.ScreeningResult, error){status(backend.ScreeningFailed)},
			wantOutcome: poll.Resolved,
			wantStatus:  backend.ScreeningFailed,
			wantCalls:   1,
		},
		{
			name:        "gives up while running",
			script:      []func() (*backend.ScreeningResult, error){status(backend.ScreeningRunning)},
			wantOutcome: poll.GaveUp,
			wantStatus:  backend.ScreeningRunning,
			wantCalls:   4,
		},
		{
			name:        "transient errors are retried",
			script:      []func() (*backend.ScreeningResult, error){failing(&backend.StatusError{StatusCode: http.StatusBadGateway}), status(backend.ScreeningCompleted)},
			wantOutcome: poll.Resolved,
			wantStatus:  backend.ScreeningCompleted,
			wantCalls:   2,
		},
		{
			name:        "unauthorized stops",
			script:      []func() (*backend.ScreeningResult, error){failing(backend.ErrUnauthorized)},
			wantOutcome: poll.GaveUp,
			wantErr:     backend.ErrUnauthorized,
			wantCalls:   1,
		},
		{
			name:        "unknown screening stops",
			script:      []func() (*backend.ScreeningResult, error){failing(&backend.StatusError{StatusCode: http.StatusNotFound})},
			wantOutcome: poll.GaveUp,
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &scriptedBackend{script: tt.script}
			res, outcome, err := Wait(context.Background(), b, "tok", "scr-1", poll.Policy{MaxAttempts: 4})

			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantCalls, b.calls)
			assert.Equal(t, "tok", b.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantStatus != "" {
				require.NoError(t, err)
				require.NotNil(t, res)
				assert.Equal(t, tt.wantStatus, res.Status)
			}
		})
	}
}

func TestPermanent(t *testing.T) {
	assert.True(t, permanent(backend.ErrUnauthorized))
	assert.True(t, permanent(&backend.StatusError{StatusCode: http.StatusForbidden}))
	assert.True(t, permanent(backend.GraphQLErrors{{Message: "no such screening"}}))
	assert.False(t, permanent(backend.ErrCircuitOpen))
	assert.False(t, permanent(errors.New("connection reset")))
}
