package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis with a native TTL. Used as the hot
// layer in front of Postgres; it can also serve standalone.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(fingerprint, identity string) string {
	return fmt.Sprintf("searchcache:%s:%s", identity, fingerprint)
}

func (s *RedisStore) Get(ctx context.Context, fingerprint, identity string) (*Entry, error) {
	data, err := s.client.Get(ctx, redisKey(fingerprint, identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &entry, nil
}

func (s *RedisStore) Put(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	ttl := s.ttl
	if !entry.ExpiresAt.IsZero() {
		if until := time.Until(entry.ExpiresAt.Add(GraceWindow)); until > 0 {
			ttl = until
		}
	}
	if err := s.client.Set(ctx, redisKey(entry.Fingerprint, entry.Identity), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op for Redis: key TTLs already enforce expiry.
func (s *RedisStore) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

// TieredStore reads through Redis into Postgres and writes through to
// both. A Redis failure degrades to the durable store instead of failing
// the request.
type TieredStore struct {
	hot     Store
	durable Store
	logger  *slog.Logger
}

func NewTieredStore(hot, durable Store, logger *slog.Logger) *TieredStore {
	return &TieredStore{
		hot:     hot,
		durable: durable,
		logger:  logger.With("component", "cache"),
	}
}

func (s *TieredStore) Get(ctx context.Context, fingerprint, identity string) (*Entry, error) {
	entry, err := s.hot.Get(ctx, fingerprint, identity)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrNotFound) {
		s.logger.Warn("hot cache read failed", "error", err)
	}

	entry, err = s.durable.Get(ctx, fingerprint, identity)
	if err != nil {
		return nil, err
	}
	if backfillErr := s.hot.Put(ctx, entry); backfillErr != nil {
		s.logger.Warn("hot cache backfill failed", "error", backfillErr)
	}
	return entry, nil
}

func (s *TieredStore) Put(ctx context.Context, entry *Entry) error {
	if err := s.hot.Put(ctx, entry); err != nil {
		s.logger.Warn("hot cache write failed", "error", err)
	}
	return s.durable.Put(ctx, entry)
}

func (s *TieredStore) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.durable.DeleteExpired(ctx, olderThan)
}
