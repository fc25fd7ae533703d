package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"post-archivist/internal/storage"
	"post-archivist/internal/timerange"

	"github.com/robfig/cron/v3"
)

// DailyArchiver archives the previous local day on a cron schedule. It runs
// once at start so a missed day is caught up, and consults the ledger so a
// finished day is not archived twice.
type DailyArchiver struct {
	Archiver *Archiver
	Ledger   storage.Ledger
	Spec     string
	Now      func() time.Time

	mu sync.Mutex
}

func (w *DailyArchiver) Start(ctx context.Context) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	c := cron.New(cron.WithLocation(timerange.Local))
	if _, err := c.AddFunc(w.Spec, func() { w.runOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", w.Spec, err)
	}
	w.runOnce(ctx)
	c.Start()
	slog.Info("daily: scheduled", "spec", w.Spec, "zone", timerange.Local.String())

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (w *DailyArchiver) runOnce(ctx context.Context) {
	if !w.mu.TryLock() {
		slog.Warn("daily: previous run still in progress, skipping")
		return
	}
	defer w.mu.Unlock()

	r, err := timerange.New(timerange.Yesterday(w.Now()), time.Time{})
	if err != nil {
		slog.Error("daily: build range", "error", err)
		return
	}
	if w.Ledger != nil {
		done, err := w.Ledger.IsArchived(ctx, r.Key())
		if err != nil {
			slog.Warn("daily: ledger check failed", "key", r.Key(), "error", err)
		} else if done {
			slog.Info("daily: already archived", "key", r.Key())
			return
		}
	}

	res, err := w.Archiver.Run(ctx, r, false)
	if errors.Is(err, ErrNoPosts) {
		slog.Info("daily: nothing to archive", "range", r.String())
		return
	}
	if err != nil {
		slog.Error("daily: run failed", "range", r.String(), "error", err)
		return
	}
	if w.Ledger != nil {
		rec := storage.Record{Posts: res.Posts, Documents: res.Documents, FromCache: res.FromCache, At: w.Now().UTC()}
		if err := w.Ledger.MarkArchived(ctx, r.Key(), rec); err != nil {
			slog.Warn("daily: ledger update failed", "key", r.Key(), "error", err)
		}
	}
}
