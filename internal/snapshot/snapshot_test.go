package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"post-archivist/internal/model"
	"post-archivist/internal/timerange"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRange(t *testing.T, start, end string) timerange.Range {
	t.Helper()
	r, err := timerange.Parse(start, end, time.Now())
	require.NoError(t, err)
	return r
}

func sampleCollection() model.PostCollection {
	return model.PostCollection{
		Posts: []model.Post{
			{
				ID:        "100",
				AuthorID:  "1",
				CreatedAt: time.Date(2026, 2, 21, 5, 30, 0, 0, time.UTC),
				Text:      "hello https://t.co/abc",
				Metrics:   &model.Metrics{Likes: 5, Reposts: 2, Replies: 1, Impressions: 120},
				Entities: model.Entities{URLs: []model.URLEntity{
					{URL: "https://t.co/abc", ExpandedURL: "https://example.com/a"},
				}},
			},
			{
				ID:         "101",
				AuthorID:   "1",
				CreatedAt:  time.Date(2026, 2, 21, 6, 0, 0, 0, time.UTC),
				Text:       "quoting",
				References: []model.Reference{{Kind: model.RefQuote, ID: "900"}},
			},
		},
		Includes: model.Includes{
			Posts: []model.Post{{ID: "900", AuthorID: "2", Text: "quoted", CreatedAt: time.Date(2026, 2, 20, 1, 0, 0, 0, time.UTC)}},
			Users: []model.User{{ID: "2", Username: "someone"}},
		},
		RequestCount: 1,
		Exhausted:    true,
	}
}

func assertSameCollection(t *testing.T, want, got model.PostCollection) {
	t.Helper()
	assert.Equal(t, want.Posts, got.Posts)
	assert.Equal(t, want.Includes, got.Includes)
	assert.Equal(t, want.RequestCount, got.RequestCount)
	assert.Equal(t, want.Exhausted, got.Exhausted)
	assert.True(t, got.FromCache)
}

func TestFileStoreRoundTrip(t *testing.T) {
	s := NewFileStore(t.TempDir())
	r := testRange(t, "2026-02-21", "")
	ctx := context.Background()

	_, ok := s.Lookup(ctx, r)
	assert.False(t, ok)

	want := sampleCollection()
	require.NoError(t, s.Save(ctx, r, want))
	assert.FileExists(t, filepath.Join(s.Dir, "20260221_20260222.json"))

	got, ok := s.Lookup(ctx, r)
	require.True(t, ok)
	assertSameCollection(t, want, got)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	s := NewFileStore(t.TempDir())
	r := testRange(t, "2026-02-21", "")
	ctx := context.Background()

	first := sampleCollection()
	require.NoError(t, s.Save(ctx, r, first))

	second := sampleCollection()
	second.Posts = second.Posts[:1]
	second.Posts[0].Text = "refreshed"
	require.NoError(t, s.Save(ctx, r, second))

	got, ok := s.Lookup(ctx, r)
	require.True(t, ok)
	require.Len(t, got.Posts, 1)
	assert.Equal(t, "refreshed", got.Posts[0].Text)
}

func TestFileStoreRangesAreIndependent(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testRange(t, "2026-02-21", "2026-02-23"), sampleCollection()))

	_, ok := s.Lookup(ctx, testRange(t, "2026-02-21", ""))
	assert.False(t, ok)
	_, ok = s.Lookup(ctx, testRange(t, "2026-02-22", ""))
	assert.False(t, ok)
}

func TestFileStoreCorruptEntryIsMiss(t *testing.T) {
	cases := map[string]string{
		"not json":       "{oops",
		"no tweets":      `{"includes":{}}`,
		"empty tweets":   `{"tweets":[]}`,
		"missing id":     `{"tweets":[{"text":"x"}]}`,
		"missing text":   `{"tweets":[{"id":"1"}]}`,
		"blank text":     `{"tweets":[{"id":"1","text":"  "}]}`,
		"non-object":     `{"tweets":["1"]}`,
		"bad include":    `{"tweets":[{"id":"1","text":"a"}],"includes":{"tweets":[{"id":"2"}]}}`,
		"numeric id":     `{"tweets":[{"id":1,"text":"a"}]}`,
		"tweets wrong":   `{"tweets":{"id":"1"}}`,
		"null container": `{"tweets":null}`,
	}
	r := testRange(t, "2026-02-21", "")
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewFileStore(t.TempDir())
			require.NoError(t, os.WriteFile(filepath.Join(s.Dir, r.Key()+".json"), []byte(body), 0o644))
			_, ok := s.Lookup(context.Background(), r)
			assert.False(t, ok)
		})
	}
}

func TestDecodeReportsCorrupt(t *testing.T) {
	_, err := Decode([]byte(`{"tweets":[{"id":"1"}]}`))
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	s := NewRedisStore(rdb, time.Hour)
	r := testRange(t, "2026-02-21", "")
	ctx := context.Background()

	_, ok := s.Lookup(ctx, r)
	assert.False(t, ok)

	want := sampleCollection()
	require.NoError(t, s.Save(ctx, r, want))
	assert.True(t, mr.Exists("archive:snapshot:20260221_20260222"))
	assert.Equal(t, time.Hour, mr.TTL("archive:snapshot:20260221_20260222"))

	got, ok := s.Lookup(ctx, r)
	require.True(t, ok)
	assertSameCollection(t, want, got)

	require.NoError(t, mr.Set("archive:snapshot:20260221_20260222", `{"tweets":[{"id":"1"}]}`))
	_, ok = s.Lookup(ctx, r)
	assert.False(t, ok)
}
