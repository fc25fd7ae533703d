package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"post-archivist/internal/model"
	"post-archivist/internal/timerange"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries as JSON strings. A zero TTL keeps them forever.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func snapshotKey(r timerange.Range) string {
	return fmt.Sprintf("archive:snapshot:%s", r.Key())
}

func (s *RedisStore) Lookup(ctx context.Context, r timerange.Range) (model.PostCollection, bool) {
	b, err := s.rdb.Get(ctx, snapshotKey(r)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.PostCollection{}, false
	}
	if err != nil {
		slog.Warn("snapshot: redis get failed, treating as miss", "key", snapshotKey(r), "error", err)
		return model.PostCollection{}, false
	}
	c, err := Decode(b)
	if err != nil {
		slog.Warn("snapshot: invalid entry, treating as miss", "key", snapshotKey(r), "error", err)
		return model.PostCollection{}, false
	}
	c.FromCache = true
	return c, true
}

func (s *RedisStore) Save(ctx context.Context, r timerange.Range, c model.PostCollection) error {
	b, err := Encode(c)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := s.rdb.Set(ctx, snapshotKey(r), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("snapshot: redis set: %w", err)
	}
	return nil
}
