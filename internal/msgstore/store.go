// Package msgstore archives the provider wire message of every accepted
// send, keyed by provider operation ID.
package msgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned when a requested message does not exist.
	ErrNotFound = errors.New("msgstore: message not found")
	// ErrInvalidID is returned for IDs that cannot be used as a file or object name.
	ErrInvalidID = errors.New("msgstore: invalid message id")
)

// Store defines the interface for archive backends.
type Store interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
}

// Config holds configuration for creating a Store.
type Config struct {
	Type       string // "none", "local" or "s3"
	Path       string // base directory for local store
	S3Bucket   string
	S3Prefix   string
	S3Endpoint string
	S3Region   string
}

// New creates a Store based on cfg. It returns a nil Store when archiving
// is disabled.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (Store, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "local":
		logger.Info().Str("path", cfg.Path).Msg("archiving messages to local directory")
		return NewLocalFileStore(cfg.Path)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, errors.New("msgstore: s3 bucket is required")
		}
		logger.Info().Str("bucket", cfg.S3Bucket).Str("prefix", cfg.S3Prefix).Msg("archiving messages to s3")
		return NewS3StoreFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("msgstore: unknown store type: %s", cfg.Type)
	}
}

// objectName maps an operation ID onto a file or object name.
func objectName(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return id + ".json", nil
}
