package thread

import (
	"fmt"
	"testing"
	"time"

	"post-archivist/internal/model"
	"post-archivist/internal/timerange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "42"

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 2, day, hour, minute, 0, 0, timerange.Local)
}

func post(id string, created time.Time, refs ...model.Reference) model.Post {
	return model.Post{ID: id, AuthorID: owner, CreatedAt: created, Text: "post " + id, References: refs}
}

func replyTo(id string) model.Reference  { return model.Reference{Kind: model.RefReply, ID: id} }
func quoteOf(id string) model.Reference  { return model.Reference{Kind: model.RefQuote, ID: id} }
func repostOf(id string) model.Reference { return model.Reference{Kind: model.RefRepost, ID: id} }

func ids(t Thread) []string {
	var out []string
	for _, p := range t.Posts {
		out = append(out, p.ID)
	}
	return out
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Original, Classify(post("1", at(21, 9, 0))))
	assert.Equal(t, Reply, Classify(post("2", at(21, 9, 0), replyTo("9"))))
	assert.Equal(t, Quote, Classify(post("3", at(21, 9, 0), quoteOf("9"))))
	assert.Equal(t, PlainRepost, Classify(post("4", at(21, 9, 0), repostOf("9"))))

	rt := post("5", at(21, 9, 0), repostOf("9"))
	rt.Text = "RT @someone: hello"
	rt.Metrics = &model.Metrics{Likes: 30}
	assert.Equal(t, PlainRepost, Classify(rt))
	assert.Equal(t, "repost", PlainRepost.String())
}

func TestAssembleSelfReplyChain(t *testing.T) {
	const n = 6
	var posts []model.Post
	for i := 0; i < n; i++ {
		var refs []model.Reference
		if i > 0 {
			refs = append(refs, replyTo(fmt.Sprint(i-1)))
		}
		posts = append(posts, post(fmt.Sprint(i), at(21, 10, i), refs...))
	}
	// Feed in reverse to show input order does not matter.
	for l, r := 0, len(posts)-1; l < r; l, r = l+1, r-1 {
		posts[l], posts[r] = posts[r], posts[l]
	}

	threads := Assemble(model.PostCollection{Posts: posts}, owner)
	require.Len(t, threads, 1)
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5"}, ids(threads[0]))
	assert.Equal(t, Original, threads[0].Kind)
}

func TestAssembleEveryOwnerPostOnce(t *testing.T) {
	foreign := model.Post{ID: "f1", AuthorID: "7", CreatedAt: at(21, 8, 0), Text: "foreign"}
	c := model.PostCollection{
		Posts: []model.Post{
			post("a", at(21, 9, 0)),
			post("b", at(21, 9, 5), replyTo("a")), // a is taken by the later sibling c
			post("c", at(21, 9, 6), replyTo("a")),
			post("d", at(21, 11, 0), replyTo("f1")),
			post("e", at(21, 12, 0), replyTo("d")),
			post("g", at(21, 13, 0), replyTo("missing")),
			post("h", at(21, 14, 0), quoteOf("f1")),
			post("a", at(21, 9, 0)),
		},
		Includes: model.Includes{Posts: []model.Post{foreign, post("inc", at(21, 7, 0))}},
	}

	threads := Assemble(c, owner)
	seen := map[string]int{}
	for _, th := range threads {
		for _, p := range th.Posts {
			seen[p.ID]++
		}
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1, "e": 1, "g": 1, "h": 1}, seen)

	require.Len(t, threads, 5)
	assert.Equal(t, []string{"a", "c"}, ids(threads[0]))
	assert.Equal(t, []string{"b"}, ids(threads[1]))
	assert.Equal(t, []string{"d", "e"}, ids(threads[2]))
	assert.Equal(t, Reply, threads[2].Kind)
	assert.Equal(t, []string{"g"}, ids(threads[3]))
	assert.Equal(t, []string{"h"}, ids(threads[4]))
	assert.Equal(t, Quote, threads[4].Kind)
}

func TestAssembleNeverCrossesAuthors(t *testing.T) {
	other := model.Post{ID: "o", AuthorID: "7", CreatedAt: at(21, 9, 0), Text: "other"}
	mine := post("m", at(21, 9, 1), replyTo("o"))
	threads := Assemble(model.PostCollection{Posts: []model.Post{other, mine}}, owner)
	require.Len(t, threads, 1)
	assert.Equal(t, []string{"m"}, ids(threads[0]))
}

func TestThreadMetrics(t *testing.T) {
	a := post("a", at(21, 15, 0))
	a.Metrics = &model.Metrics{Likes: 4, Reposts: 1, Replies: 1, Impressions: 50}
	b := post("b", at(21, 15, 5), replyTo("a"))
	b.Metrics = &model.Metrics{Likes: 6, Impressions: 30}
	c := post("c", at(21, 15, 6), replyTo("b"))

	th := Assemble(model.PostCollection{Posts: []model.Post{a, b, c}}, owner)
	require.Len(t, th, 1)
	assert.Equal(t, model.Metrics{Likes: 10, Reposts: 1, Replies: 1, Impressions: 80}, th[0].Metrics())
}

func TestBucketByFirstPostDate(t *testing.T) {
	late := post("late", at(21, 23, 50))
	after := post("after", at(22, 0, 10), replyTo("late"))
	next := post("next", at(22, 9, 0))
	early := post("early", at(20, 22, 0))

	threads := Assemble(model.PostCollection{Posts: []model.Post{next, after, late, early}}, owner)
	buckets := Bucket(threads)
	require.Len(t, buckets, 3)

	assert.Equal(t, "2026-02-20", buckets[0].Date)
	assert.Equal(t, "2026-02-21", buckets[1].Date)
	require.Len(t, buckets[1].Threads, 1)
	assert.Equal(t, []string{"late", "after"}, ids(buckets[1].Threads[0]))
	assert.Equal(t, "2026-02-22", buckets[2].Date)
	assert.Equal(t, []string{"next"}, ids(buckets[2].Threads[0]))
}

func TestBucketUsesLocalCalendar(t *testing.T) {
	// 16:00 UTC on the 21st is 01:00 on the 22nd at UTC+9.
	p := post("u", time.Date(2026, 2, 21, 16, 0, 0, 0, time.UTC))
	buckets := Bucket(Assemble(model.PostCollection{Posts: []model.Post{p}}, owner))
	require.Len(t, buckets, 1)
	assert.Equal(t, "2026-02-22", buckets[0].Date)
}
