// Package history keeps a record of messages accepted by the provider so
// callers can list what they sent and look up a messageId again later.
// Entries never carry a delivery status; status is always read from the
// provider.
package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sungwon/email-gateway/internal/storage"
)

// ErrNotFound is returned when no entry exists for a messageId.
var ErrNotFound = errors.New("history: entry not found")

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 50

// Entry describes one accepted send.
type Entry struct {
	// MessageID is the opaque handle returned to the caller.
	MessageID  string    `json:"messageId"`
	ID         string    `json:"id"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	SentAt     time.Time `json:"sentAt"`
}

// Store defines the interface for history backends.
type Store interface {
	Add(ctx context.Context, entry Entry) error
	Get(ctx context.Context, messageID string) (*Entry, error)
	// List returns up to limit entries, newest first.
	List(ctx context.Context, limit int) ([]Entry, error)
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Config holds configuration for creating a Store.
type Config struct {
	Type           string // "none", "memory", "redis" or "postgres"
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisPrefix    string
	DatabaseURL    string
	PoolMin        int32
	PoolMax        int32
	ConnectTimeout time.Duration
	MaxEntries     int
}

// New creates a Store for cfg.Type. It returns a nil Store when history is
// disabled.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (Store, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil

	case "memory":
		return NewMemoryStore(cfg.MaxEntries), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := NewRedisStore(client, cfg.RedisPrefix, cfg.MaxEntries)
		if err := store.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis history store not reachable yet")
		}
		return store, nil

	case "postgres":
		db, err := storage.NewDB(ctx, storage.Config{
			URL:            cfg.DatabaseURL,
			MinConns:       cfg.PoolMin,
			MaxConns:       cfg.PoolMax,
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		store, err := NewPostgresStore(ctx, db, cfg.MaxEntries)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("history: unknown store type: %s", cfg.Type)
	}
}

// Key returns the storage key for a messageId. Handles can be long, so
// backends index them by digest.
func Key(messageID string) string {
	sum := sha256.Sum256([]byte(messageID))
	return hex.EncodeToString(sum[:])
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
