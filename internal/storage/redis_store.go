package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps run records under archive:done:<range key>.
type RedisStore struct {
	rdb       *redis.Client
	retention time.Duration
}

// NewRedisStore creates a ledger whose records expire after retention; zero keeps them.
func NewRedisStore(rdb *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, retention: retention}
}

func doneKey(rangeKey string) string {
	return fmt.Sprintf("archive:done:%s", rangeKey)
}

func (s *RedisStore) IsArchived(ctx context.Context, rangeKey string) (bool, error) {
	n, err := s.rdb.Exists(ctx, doneKey(rangeKey)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, rangeKey string) (Record, bool, error) {
	b, err := s.rdb.Get(ctx, doneKey(rangeKey)).Bytes()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode run record: %w", err)
	}
	return rec, true, nil
}

func (s *RedisStore) MarkArchived(ctx context.Context, rangeKey string, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, doneKey(rangeKey), b, s.retention).Err()
}
