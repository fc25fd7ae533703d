// Package analytics sums engagement for a day of threads.
package analytics

import (
	"post-archivist/internal/model"
	"post-archivist/internal/thread"
)

// Summary is the per-day analytics row. Posts counts threads, not posts.
type Summary struct {
	Posts int
	model.Metrics
}

// Summarize counts every thread that is not a plain repost and sums the
// metrics of all posts in those threads. Reposts contribute nothing.
func Summarize(b thread.DayBucket) Summary {
	var s Summary
	for _, t := range b.Threads {
		if t.Kind == thread.PlainRepost {
			continue
		}
		s.Posts++
		s.Metrics = s.Metrics.Add(t.Metrics())
	}
	return s
}
