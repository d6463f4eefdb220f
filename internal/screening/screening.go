// Package screening follows third-party biosecurity screenings until the
// backend reports a final status.
package screening

import (
	"context"
	"errors"
	"net/http"

	"github.com/brizzai/labportal/internal/backend"
	"github.com/brizzai/labportal/internal/logger"
	"github.com/brizzai/labportal/internal/poll"
	"github.com/brizzai/labportal/internal/tracer"
	"go.uber.org/zap"
)

// Wait polls the screening id within the bounds of p. On GaveUp the last
// known result is returned, possibly nil; callers should query again later.
func Wait(ctx context.Context, b backend.Backend, token, id string, p poll.Policy) (res *backend.ScreeningResult, outcome poll.Outcome, err error) {
	ctx, span := tracer.StartSpan(ctx, "screening.Wait")
	span.SetAttributes(tracer.StringAttr("screening.id", id))
	defer func() {
		span.SetAttributes(tracer.StringAttr("poll.outcome", outcome.String()))
		tracer.End(span, err)
	}()

	return poll.Until(ctx, p, func(ctx context.Context) (*backend.ScreeningResult, bool, error) {
		res, err := b.ScreeningResult(ctx, token, id)
		if err != nil {
			if permanent(err) {
				return nil, false, poll.Permanent(err)
			}
			return nil, false, err
		}
		logger.Debug("Screening status", zap.String("id", id), zap.String("status", string(res.Status)))
		return res, res.Done(), nil
	})
}

// permanent reports errors that another attempt cannot fix.
func permanent(err error) bool {
	if errors.Is(err, backend.ErrUnauthorized) {
		return true
	}
	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusForbidden
	}
	var gqlErr backend.GraphQLErrors
	return errors.As(err, &gqlErr)
}
