package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"post-archivist/internal/expand"
	"post-archivist/internal/linkresolve"
	"post-archivist/internal/media"
	"post-archivist/internal/model"
	"post-archivist/internal/output"
	"post-archivist/internal/render"
	"post-archivist/internal/snapshot"
	"post-archivist/internal/source"
	"post-archivist/internal/thread"
	"post-archivist/internal/timerange"
)

// ErrNoPosts is returned when a fresh fetch finds nothing in the range.
var ErrNoPosts = errors.New("no posts in range")

// Archiver runs the whole pipeline for one range: snapshot or fetch, link
// titles, media, threading and one document per local date.
type Archiver struct {
	Source      source.PostSource
	Snapshots   snapshot.Store
	Resolver    *linkresolve.Resolver
	LinkWorkers int
	// Media is optional; nil leaves attachments out of the documents.
	Media       *media.Downloader
	Renderer    render.Renderer
	Writer      output.Writer
	OwnerID     string
	CostPerPost float64
}

// Result summarizes a run.
type Result struct {
	Range     timerange.Range
	Posts     int
	Requests  int
	FromCache bool
	Documents []string
}

// Run archives r. With refresh the snapshot is ignored and overwritten.
func (a *Archiver) Run(ctx context.Context, r timerange.Range, refresh bool) (Result, error) {
	start := time.Now()
	res := Result{Range: r}

	coll, err := a.collect(ctx, r, refresh)
	if err != nil {
		return res, err
	}
	res.Posts = len(coll.Posts)
	res.Requests = coll.RequestCount
	res.FromCache = coll.FromCache

	titles := a.resolveLinks(ctx, coll)
	var mediaPaths map[string]string
	if a.Media != nil {
		mediaPaths = a.Media.Fetch(ctx, coll)
	}

	threads := thread.Assemble(coll, a.OwnerID)
	buckets := thread.Bucket(threads)
	exp := expand.New(coll)
	rd := a.Renderer
	rd.Titles = titles
	rd.Media = mediaPaths
	for _, b := range buckets {
		doc, err := rd.Render(b, exp)
		if err != nil {
			return res, err
		}
		p, err := a.Writer.Write(doc)
		if err != nil {
			return res, fmt.Errorf("write %s: %w", b.Date, err)
		}
		res.Documents = append(res.Documents, p)
		slog.Info("archiver: wrote document", "date", b.Date, "threads", len(b.Threads), "path", p)
	}
	slog.Info("archiver: run complete",
		"range", r.String(),
		"posts", res.Posts,
		"threads", len(threads),
		"documents", len(res.Documents),
		"from_cache", res.FromCache,
		"duration", time.Since(start),
	)
	return res, nil
}

func (a *Archiver) collect(ctx context.Context, r timerange.Range, refresh bool) (model.PostCollection, error) {
	if !refresh && a.Snapshots != nil {
		if c, ok := a.Snapshots.Lookup(ctx, r); ok {
			slog.Info("archiver: snapshot hit", "key", r.Key(), "posts", len(c.Posts))
			return c, nil
		}
	}
	c, err := source.FetchAll(ctx, a.Source, r)
	if err != nil {
		return model.PostCollection{}, err
	}
	if len(c.Posts) == 0 {
		slog.Info("archiver: no posts in range", "range", r.String(), "requests", c.RequestCount)
		return model.PostCollection{}, ErrNoPosts
	}
	if bf, ok := a.Source.(source.MediaBackfiller); ok && a.Media != nil {
		if err := bf.BackfillMedia(ctx, &c); err != nil {
			slog.Warn("archiver: media backfill failed", "error", err)
		}
	}
	slog.Info("archiver: estimated api cost",
		"posts", len(c.Posts),
		"requests", c.RequestCount,
		"usd", fmt.Sprintf("%.3f", float64(len(c.Posts))*a.CostPerPost),
	)
	if a.Snapshots != nil {
		if err := a.Snapshots.Save(ctx, r, c); err != nil {
			return model.PostCollection{}, fmt.Errorf("save snapshot %s: %w", r.Key(), err)
		}
	}
	return c, nil
}

func (a *Archiver) resolveLinks(ctx context.Context, c model.PostCollection) render.TitleLookup {
	if a.Resolver == nil {
		return render.Titles{}
	}
	if err := a.Resolver.Load(ctx); err != nil {
		slog.Warn("archiver: load link titles failed", "error", err)
	}
	a.Resolver.ResolveAll(ctx, render.LinkTargets(c.Posts, c.Includes.Posts), a.LinkWorkers)
	if err := a.Resolver.Flush(ctx); err != nil {
		slog.Warn("archiver: persist link titles failed", "error", err)
	}
	return a.Resolver
}
