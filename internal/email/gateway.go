package email

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/email-gateway/internal/acs"
	"github.com/sungwon/email-gateway/internal/history"
	"github.com/sungwon/email-gateway/internal/logger"
	"github.com/sungwon/email-gateway/internal/metrics"
	"github.com/sungwon/email-gateway/internal/msgstore"
)

// Sender starts provider send operations. *acs.Client implements it.
type Sender interface {
	BeginSend(ctx context.Context, msg *acs.Message) (*acs.Poller, error)
}

// Gateway validates send requests, hands them to the provider and returns
// the handle for the started operation. It never waits for delivery.
type Gateway struct {
	client  Sender
	sender  string
	archive msgstore.Store
	history history.Store
	log     zerolog.Logger
	now     func() time.Time
}

// NewGateway creates a Gateway that sends as sender. archive and hist may
// be nil to disable them.
func NewGateway(client Sender, sender string, archive msgstore.Store, hist history.Store, log zerolog.Logger) *Gateway {
	return &Gateway{
		client:  client,
		sender:  sender,
		archive: archive,
		history: hist,
		log:     log,
		now:     time.Now,
	}
}

// Send validates req and starts a provider send operation. Validation
// failures return a *ValidationError without contacting the provider;
// provider failures are wrapped with ErrUpstream. There are no retries.
func (g *Gateway) Send(ctx context.Context, req *SendRequest) (Handle, error) {
	if err := req.Validate(); err != nil {
		metrics.EmailSendTotal.WithLabelValues("invalid").Inc()
		return "", err
	}

	msg := Build(g.sender, req)

	start := time.Now()
	poller, err := g.client.BeginSend(ctx, msg)
	metrics.ProviderRequestDuration.WithLabelValues("send").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmailSendTotal.WithLabelValues("rejected").Inc()
		g.logFor(ctx).Error().Err(err).
			Int("recipients", len(req.addressList())).
			Msg("provider rejected send")
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	metrics.EmailSendTotal.WithLabelValues("accepted").Inc()
	g.logFor(ctx).Info().
		Str("operation_id", poller.ID()).
		Dur("retry_after", poller.RetryAfter()).
		Msg("send accepted by provider")

	handle := Handle(poller.ResumeToken())
	g.archiveMessage(ctx, poller.ID(), msg)
	g.recordHistory(ctx, handle, poller.ID(), req)
	return handle, nil
}

// archiveMessage stores the wire message. Failures are logged only.
func (g *Gateway) archiveMessage(ctx context.Context, operationID string, msg *acs.Message) {
	if g.archive == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err == nil {
		err = g.archive.Put(ctx, operationID, data)
	}
	if err != nil {
		metrics.ArchiveErrorsTotal.Inc()
		g.logFor(ctx).Warn().Err(err).Str("operation_id", operationID).Msg("failed to archive message")
	}
}

// recordHistory adds a history entry. Failures are logged only.
func (g *Gateway) recordHistory(ctx context.Context, handle Handle, operationID string, req *SendRequest) {
	if g.history == nil {
		return
	}
	err := g.history.Add(ctx, history.Entry{
		MessageID:  handle.String(),
		ID:         operationID,
		Recipients: req.addressList(),
		Subject:    req.Subject,
		SentAt:     g.now().UTC(),
	})
	if err != nil {
		metrics.HistoryErrorsTotal.WithLabelValues("add").Inc()
		g.logFor(ctx).Warn().Err(err).Str("operation_id", operationID).Msg("failed to record history")
	}
}

// logFor tags the gateway logger with the request's correlation ID.
func (g *Gateway) logFor(ctx context.Context) *zerolog.Logger {
	return withCorrelation(ctx, g.log)
}

func withCorrelation(ctx context.Context, l zerolog.Logger) *zerolog.Logger {
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		l = l.With().Str("correlation_id", id).Logger()
	}
	return &l
}
