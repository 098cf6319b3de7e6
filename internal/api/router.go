package api

import (
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sungwon/email-gateway/internal/history"
	"github.com/sungwon/email-gateway/internal/msgstore"
)

// RouterConfig carries the dependencies and switches for NewRouter.
type RouterConfig struct {
	Sender   EmailSender
	Resolver StatusResolver
	// History is optional; nil disables the history endpoints.
	History history.Store
	// Archive is optional; when set, history lookups include the archived message.
	Archive msgstore.Store
	// Ready lists dependencies checked by /readyz.
	Ready map[string]Pinger

	LegacyErrors   bool
	MaxBodyBytes   int64
	MetricsEnabled bool
	MetricsPath    string
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers configured.
func NewRouter(cfg RouterConfig, log zerolog.Logger) (*chi.Mux, error) {
	doc, err := openAPIJSON()
	if err != nil {
		return nil, fmt.Errorf("load api docs: %w", err)
	}
	failures := failureWriter{legacy: cfg.LegacyErrors}

	r := chi.NewRouter()

	// Global middleware
	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoverMiddleware(log))
	if cfg.MetricsEnabled {
		r.Use(MetricsMiddleware)
	}

	// Health and docs
	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(cfg.Ready))
	r.Get("/api-docs.json", DocsJSONHandler(doc))
	r.Get("/api-docs", DocsUIHandler())
	r.Get("/api-docs/", DocsUIHandler())
	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	r.Route("/api/email", func(r chi.Router) {
		r.Use(BodyLimitMiddleware(cfg.MaxBodyBytes))

		r.Post("/", SendEmailHandler(cfg.Sender, failures))
		r.Post("/status", EmailStatusHandler(cfg.Resolver, failures))
		r.Get("/history", ListHistoryHandler(cfg.History, failures))
		r.Delete("/history", ClearHistoryHandler(cfg.History, failures))
		r.Get("/history/{messageId}", GetHistoryHandler(cfg.History, cfg.Archive, failures))
	})

	return r, nil
}
