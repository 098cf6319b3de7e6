package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each entry in a hash and orders them with a sorted set
// scored by send time.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	maxEntries int
}

// NewRedisStore creates a RedisStore using keys under prefix.
func NewRedisStore(client *redis.Client, prefix string, maxEntries int) *RedisStore {
	if prefix == "" {
		prefix = "email-gateway:history"
	}
	return &RedisStore{client: client, prefix: prefix, maxEntries: maxEntries}
}

func (s *RedisStore) indexKey() string { return s.prefix + ":index" }

func (s *RedisStore) entryKey(key string) string { return s.prefix + ":entry:" + key }

// Add records entry and drops the oldest entries beyond the configured
// bound. Adding the same messageId again is a no-op. The existence check
// and the write run under WATCH, so of several concurrent adds for one
// messageId only the first is stored.
func (s *RedisStore) Add(ctx context.Context, entry Entry) error {
	key := Key(entry.MessageID)
	entryKey := s.entryKey(key)

	recipients, err := json.Marshal(entry.Recipients)
	if err != nil {
		return fmt.Errorf("history: marshal recipients: %w", err)
	}

	added := false
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, entryKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, entryKey, map[string]interface{}{
				"message_id": entry.MessageID,
				"id":         entry.ID,
				"recipients": string(recipients),
				"subject":    entry.Subject,
				"sent_at":    entry.SentAt.UTC().Format(time.RFC3339Nano),
			})
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{
				Score:  float64(entry.SentAt.UnixMicro()),
				Member: key,
			})
			return nil
		})
		if err == nil {
			added = true
		}
		return err
	}, entryKey)
	if errors.Is(err, redis.TxFailedErr) {
		// Another writer stored this messageId between WATCH and EXEC.
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: redis add: %w", err)
	}
	if !added {
		return nil
	}

	return s.trim(ctx)
}

func (s *RedisStore) trim(ctx context.Context) error {
	if s.maxEntries <= 0 {
		return nil
	}
	stale, err := s.client.ZRange(ctx, s.indexKey(), 0, int64(-s.maxEntries-1)).Result()
	if err != nil {
		return fmt.Errorf("history: redis trim: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	return s.remove(ctx, stale)
}

func (s *RedisStore) remove(ctx context.Context, keys []string) error {
	members := make([]interface{}, len(keys))
	entryKeys := make([]string, len(keys))
	for i, k := range keys {
		members[i] = k
		entryKeys[i] = s.entryKey(k)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, entryKeys...)
		pipe.ZRem(ctx, s.indexKey(), members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("history: redis remove: %w", err)
	}
	return nil
}

// Get returns the entry for messageID or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, messageID string) (*Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.entryKey(Key(messageID))).Result()
	if err != nil {
		return nil, fmt.Errorf("history: redis get: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeRedisEntry(fields)
}

// List returns up to limit entries, newest first.
func (s *RedisStore) List(ctx context.Context, limit int) ([]Entry, error) {
	limit = normalizeLimit(limit)

	keys, err := s.client.ZRevRange(ctx, s.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history: redis list: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.HGetAll(ctx, s.entryKey(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: redis list entries: %w", err)
	}

	out := make([]Entry, 0, len(keys))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		entry, err := decodeRedisEntry(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, nil
}

// Clear removes every entry and the index.
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("history: redis clear: %w", err)
	}
	if len(keys) > 0 {
		if err := s.remove(ctx, keys); err != nil {
			return err
		}
	}
	return s.client.Del(ctx, s.indexKey()).Err()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeRedisEntry(fields map[string]string) (*Entry, error) {
	entry := &Entry{
		MessageID: fields["message_id"],
		ID:        fields["id"],
		Subject:   fields["subject"],
	}
	if raw := fields["recipients"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &entry.Recipients); err != nil {
			return nil, fmt.Errorf("history: decode recipients: %w", err)
		}
	}
	if raw := fields["sent_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("history: decode sent_at: %w", err)
		}
		entry.SentAt = t
	}
	return entry, nil
}
