// Package source defines where posts come from and how paginated results
// are gathered into one collection.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"post-archivist/internal/model"
	"post-archivist/internal/timerange"
)

// Page is one response from a PostSource. An empty NextToken ends pagination.
type Page struct {
	Posts     []model.Post
	Includes  model.Includes
	NextToken string
}

// PostSource supplies posts created in [start, end), a page at a time.
type PostSource interface {
	FetchPosts(ctx context.Context, start, end time.Time, pageToken string) (Page, error)
}

// MediaBackfiller is implemented by sources that can look up attachments
// missing from a collection's includes.
type MediaBackfiller interface {
	BackfillMedia(ctx context.Context, c *model.PostCollection) error
}

// FetchError reports a failed source request. Requests counts the calls
// made, including the failing one.
type FetchError struct {
	Requests int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch posts (request %d): %v", e.Requests, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchAll walks every page for r strictly in order and merges them.
// Any page failure aborts the whole fetch.
func FetchAll(ctx context.Context, src PostSource, r timerange.Range) (model.PostCollection, error) {
	start, end := r.UTC()
	var c model.PostCollection
	seenTokens := map[string]bool{}
	token := ""
	for {
		page, err := src.FetchPosts(ctx, start, end, token)
		c.RequestCount++
		if err != nil {
			return model.PostCollection{}, &FetchError{Requests: c.RequestCount, Err: err}
		}
		c.Posts = append(c.Posts, page.Posts...)
		c.Includes.Merge(page.Includes)
		slog.Debug("source: page", "request", c.RequestCount, "posts", len(page.Posts), "next", page.NextToken != "")
		if page.NextToken == "" {
			break
		}
		if seenTokens[page.NextToken] {
			return model.PostCollection{}, &FetchError{
				Requests: c.RequestCount,
				Err:      fmt.Errorf("pagination token %q repeated", page.NextToken),
			}
		}
		seenTokens[page.NextToken] = true
		token = page.NextToken
	}
	c.Exhausted = true
	slog.Info("source: fetched", "range", r.String(), "posts", len(c.Posts), "requests", c.RequestCount)
	return c, nil
}
