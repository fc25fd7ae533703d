package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLedger(t *testing.T, l Ledger) {
	t.Helper()
	ctx := context.Background()
	const key = "20260221_20260222"

	done, err := l.IsArchived(ctx, key)
	require.NoError(t, err)
	assert.False(t, done)
	_, ok, err := l.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	rec := Record{Posts: 3, Documents: []string{"x-post-2026-02-21.md"}, At: time.Date(2026, 2, 22, 0, 10, 0, 0, time.UTC)}
	require.NoError(t, l.MarkArchived(ctx, key, rec))

	done, err = l.IsArchived(ctx, key)
	require.NoError(t, err)
	assert.True(t, done)
	got, ok, err := l.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Posts, got.Posts)
	assert.Equal(t, rec.Documents, got.Documents)
	assert.True(t, rec.At.Equal(got.At))

	done, err = l.IsArchived(ctx, "20260222_20260223")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestFileLedger(t *testing.T) {
	exerciseLedger(t, NewFileStore(t.TempDir()))
}

func TestRedisLedger(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	exerciseLedger(t, NewRedisStore(rdb, 30*24*time.Hour))
	assert.Equal(t, 30*24*time.Hour, mr.TTL("archive:done:20260221_20260222"))
}
