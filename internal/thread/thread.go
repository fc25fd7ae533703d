// Package thread groups an account's own posts into self-reply threads and
// buckets them by local calendar day.
package thread

import (
	"sort"
	"time"

	"post-archivist/internal/model"
	"post-archivist/internal/timerange"
)

// Kind classifies a post by the shape of its references.
type Kind int

const (
	Original Kind = iota
	Reply
	Quote
	PlainRepost
)

func (k Kind) String() string {
	switch k {
	case Original:
		return "original"
	case Reply:
		return "reply"
	case Quote:
		return "quote"
	case PlainRepost:
		return "repost"
	default:
		return "unknown"
	}
}

// Classify returns the kind of p. The API echoes "RT @user: ..." text and
// copies the reposted post's counters onto a repost, so any retweeted
// reference marks a plain repost regardless of text or metrics.
func Classify(p model.Post) Kind {
	if _, ok := p.Ref(model.RefRepost); ok {
		return PlainRepost
	}
	if _, ok := p.Ref(model.RefQuote); ok {
		return Quote
	}
	if _, ok := p.Ref(model.RefReply); ok {
		return Reply
	}
	return Original
}

// Thread is a chronological chain of self-replies. Posts is never empty.
type Thread struct {
	Posts []model.Post
	Kind  Kind
}

// Head returns the first post.
func (t Thread) Head() model.Post { return t.Posts[0] }

// Start is the creation time of the first post.
func (t Thread) Start() time.Time { return t.Posts[0].CreatedAt }

// Metrics sums the public metrics of every post in the thread.
func (t Thread) Metrics() model.Metrics {
	var m model.Metrics
	for _, p := range t.Posts {
		m = m.Add(p.PublicMetrics())
	}
	return m
}

// Assemble builds threads from the primary posts of c authored by ownerID.
// An empty ownerID accepts every primary post. Included posts are never
// threaded; they only appear through expansion.
//
// Posts are walked latest first; each one not yet consumed becomes the tail
// of a chain that follows reply references backward while the parent is a
// primary post by the same author that no other chain has consumed.
func Assemble(c model.PostCollection, ownerID string) []Thread {
	byID := make(map[string]model.Post, len(c.Posts))
	var owned []model.Post
	for _, p := range c.Posts {
		if ownerID != "" && p.AuthorID != ownerID {
			continue
		}
		if _, dup := byID[p.ID]; dup {
			continue
		}
		byID[p.ID] = p
		owned = append(owned, p)
	}
	model.SortChronological(owned)

	consumed := make(map[string]bool, len(owned))
	var threads []Thread
	for i := len(owned) - 1; i >= 0; i-- {
		tail := owned[i]
		if consumed[tail.ID] {
			continue
		}
		consumed[tail.ID] = true
		chain := []model.Post{tail}
		cur := tail
		for {
			ref, ok := cur.Ref(model.RefReply)
			if !ok {
				break
			}
			parent, ok := byID[ref.ID]
			if !ok || consumed[parent.ID] || parent.AuthorID != cur.AuthorID {
				break
			}
			consumed[parent.ID] = true
			chain = append(chain, parent)
			cur = parent
		}
		for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
			chain[l], chain[r] = chain[r], chain[l]
		}
		threads = append(threads, Thread{Posts: chain, Kind: Classify(chain[0])})
	}

	sort.SliceStable(threads, func(i, j int) bool {
		a, b := threads[i].Head(), threads[j].Head()
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return threads
}

// DayBucket holds the threads whose first post falls on Date (YYYY-MM-DD, local).
type DayBucket struct {
	Date    string
	Threads []Thread
}

// Bucket groups chronologically ordered threads by the local date of their
// first post. A thread crossing midnight stays with the day it started.
func Bucket(threads []Thread) []DayBucket {
	index := map[string]int{}
	var out []DayBucket
	for _, t := range threads {
		d := timerange.DateOf(t.Start())
		i, ok := index[d]
		if !ok {
			i = len(out)
			index[d] = i
			out = append(out, DayBucket{Date: d})
		}
		out[i].Threads = append(out[i].Threads, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
