package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/email-gateway/internal/acs"
	"github.com/sungwon/email-gateway/internal/metrics"
)

// Resumer rebuilds provider operations from resume tokens. *acs.Client
// implements it.
type Resumer interface {
	ResumePoller(token string) (*acs.Poller, error)
}

// Resolver turns a Handle into the current delivery status. It keeps no
// state between calls, so the same handle resolves the same way until the
// provider's state changes.
type Resolver struct {
	client Resumer
	log    zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(client Resumer, log zerolog.Logger) *Resolver {
	return &Resolver{client: client, log: log}
}

// Resolve resumes the operation behind h and fetches its state.
// Malformed, altered, foreign or expired handles and operations the
// provider no longer knows return ErrInvalidHandle. Other provider
// failures return ErrUpstream.
func (r *Resolver) Resolve(ctx context.Context, h Handle) (*StatusResult, error) {
	if h.IsZero() {
		metrics.EmailStatusQueriesTotal.WithLabelValues("invalid_handle").Inc()
		return nil, fmt.Errorf("%w: empty", ErrInvalidHandle)
	}

	poller, err := r.client.ResumePoller(h.String())
	if err != nil {
		metrics.EmailStatusQueriesTotal.WithLabelValues("invalid_handle").Inc()
		if errors.Is(err, acs.ErrInvalidResumeToken) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidHandle, err)
		}
		return nil, fmt.Errorf("resume operation: %w", err)
	}

	start := time.Now()
	op, err := poller.Poll(ctx)
	metrics.ProviderRequestDuration.WithLabelValues("status").Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, acs.ErrOperationNotFound) {
			metrics.EmailStatusQueriesTotal.WithLabelValues("invalid_handle").Inc()
			return nil, fmt.Errorf("%w: %w", ErrInvalidHandle, err)
		}
		metrics.EmailStatusQueriesTotal.WithLabelValues("error").Inc()
		withCorrelation(ctx, r.log).Error().Err(err).Str("operation_id", poller.ID()).Msg("status lookup failed")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	status, ok := statusFromState(op.Status)
	if !ok {
		metrics.EmailStatusQueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: unexpected operation status %q", ErrUpstream, op.Status)
	}

	metrics.EmailStatusQueriesTotal.WithLabelValues(string(status)).Inc()
	return &StatusResult{
		ID:     op.ID,
		Status: status,
		Error:  op.Error,
	}, nil
}
