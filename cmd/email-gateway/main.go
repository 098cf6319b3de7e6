package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sungwon/email-gateway/internal/acs"
	"github.com/sungwon/email-gateway/internal/api"
	"github.com/sungwon/email-gateway/internal/config"
	"github.com/sungwon/email-gateway/internal/email"
	"github.com/sungwon/email-gateway/internal/history"
	"github.com/sungwon/email-gateway/internal/logger"
	"github.com/sungwon/email-gateway/internal/msgstore"
)

func main() {
	configDir := flag.String("config", "config", "directory containing config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewFromConfig(logger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	log.Info().Msg("starting email gateway")

	ctx := context.Background()

	// Provider client, shared by every request
	client, err := acs.NewClient(acs.Config{
		ConnectionString: cfg.Provider.ConnectionString,
		APIVersion:       cfg.Provider.APIVersion,
		TokenTTL:         cfg.Provider.HandleTTL,
		TokenSigningKey:  cfg.Provider.HandleSigningKey,
	}, acs.NewHTTPClient(cfg.Provider.Timeout))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create provider client")
	}
	log.Info().Str("endpoint", client.Endpoint()).Msg("provider client configured")

	// Optional stores
	hist, err := history.New(ctx, history.Config{
		Type:           cfg.History.Type,
		RedisAddr:      cfg.History.RedisAddr,
		RedisPassword:  cfg.History.RedisPassword,
		RedisDB:        cfg.History.RedisDB,
		RedisPrefix:    cfg.History.RedisPrefix,
		DatabaseURL:    cfg.History.DatabaseURL,
		PoolMin:        cfg.History.PoolMin,
		PoolMax:        cfg.History.PoolMax,
		ConnectTimeout: cfg.History.ConnectTimeout,
		MaxEntries:     cfg.History.MaxEntries,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create history store")
	}
	ready := map[string]api.Pinger{}
	if hist != nil {
		defer hist.Close()
		ready["history"] = hist
		log.Info().Str("type", cfg.History.Type).Msg("message history enabled")
	}

	archive, err := msgstore.New(ctx, msgstore.Config{
		Type:       cfg.Archive.Type,
		Path:       cfg.Archive.Path,
		S3Bucket:   cfg.Archive.S3Bucket,
		S3Prefix:   cfg.Archive.S3Prefix,
		S3Endpoint: cfg.Archive.S3Endpoint,
		S3Region:   cfg.Archive.S3Region,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create message archive")
	}

	router, err := api.NewRouter(api.RouterConfig{
		Sender:         email.NewGateway(client, cfg.Sender.Address, archive, hist, log),
		Resolver:       email.NewResolver(client, log),
		History:        hist,
		Archive:        archive,
		Ready:          ready,
		LegacyErrors:   cfg.API.LegacyErrors,
		MaxBodyBytes:   cfg.API.MaxBodyBytes,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	// Configure HTTP server
	addr := cfg.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
