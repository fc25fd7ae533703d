package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"post-archivist/internal/model"
	"post-archivist/internal/timerange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	start, end time.Time
	token      string
}

type fakeSource struct {
	pages map[string]Page
	fail  map[string]error
	calls []call
}

func (f *fakeSource) FetchPosts(_ context.Context, start, end time.Time, token string) (Page, error) {
	f.calls = append(f.calls, call{start, end, token})
	if err := f.fail[token]; err != nil {
		return Page{}, err
	}
	return f.pages[token], nil
}

func day(t *testing.T) timerange.Range {
	t.Helper()
	r, err := timerange.Parse("2026-02-21", "", time.Now())
	require.NoError(t, err)
	return r
}

func TestFetchAllSequentialPages(t *testing.T) {
	src := &fakeSource{pages: map[string]Page{
		"": {
			Posts:     []model.Post{{ID: "1", Text: "a"}},
			Includes:  model.Includes{Users: []model.User{{ID: "9", Username: "x"}}},
			NextToken: "p2",
		},
		"p2": {
			Posts:     []model.Post{{ID: "2", Text: "b"}},
			Includes:  model.Includes{Users: []model.User{{ID: "9", Username: "x"}}, Posts: []model.Post{{ID: "50", Text: "c"}}},
			NextToken: "p3",
		},
		"p3": {Posts: []model.Post{{ID: "3", Text: "d"}}},
	}}
	r := day(t)
	c, err := FetchAll(context.Background(), src, r)
	require.NoError(t, err)

	assert.Len(t, c.Posts, 3)
	assert.Len(t, c.Includes.Users, 1)
	assert.Len(t, c.Includes.Posts, 1)
	assert.Equal(t, 3, c.RequestCount)
	assert.True(t, c.Exhausted)
	assert.False(t, c.FromCache)

	require.Len(t, src.calls, 3)
	assert.Equal(t, []string{"", "p2", "p3"}, []string{src.calls[0].token, src.calls[1].token, src.calls[2].token})
	// 2026-02-21 00:00 at UTC+9 is 2026-02-20 15:00 UTC.
	assert.Equal(t, time.Date(2026, 2, 20, 15, 0, 0, 0, time.UTC), src.calls[0].start)
	assert.Equal(t, time.Date(2026, 2, 21, 15, 0, 0, 0, time.UTC), src.calls[0].end)
}

func TestFetchAllFailureIsFatal(t *testing.T) {
	boom := errors.New("429 too many requests")
	src := &fakeSource{
		pages: map[string]Page{"": {Posts: []model.Post{{ID: "1", Text: "a"}}, NextToken: "p2"}},
		fail:  map[string]error{"p2": boom},
	}
	_, err := FetchAll(context.Background(), src, day(t))
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 2, fe.Requests)
	assert.ErrorIs(t, err, boom)
}

func TestFetchAllRepeatedToken(t *testing.T) {
	src := &fakeSource{pages: map[string]Page{
		"":     {NextToken: "loop"},
		"loop": {NextToken: "loop"},
	}}
	_, err := FetchAll(context.Background(), src, day(t))
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Len(t, src.calls, 2)
}

func TestFetchAllEmpty(t *testing.T) {
	c, err := FetchAll(context.Background(), &fakeSource{}, day(t))
	require.NoError(t, err)
	assert.Empty(t, c.Posts)
	assert.Equal(t, 1, c.RequestCount)
	assert.True(t, c.Exhausted)
}
