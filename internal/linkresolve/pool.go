package linkresolve

import (
	"context"
	"log/slog"
	"sync"
)

// ResolveAll resolves each distinct URL with at most workers fetches in
// flight and returns every outcome keyed by URL.
func (r *Resolver) ResolveAll(ctx context.Context, urls []string, workers int) map[string]Resolution {
	if workers <= 0 {
		workers = 1
	}
	seen := make(map[string]struct{}, len(urls))
	unique := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		unique = append(unique, u)
	}

	out := make(map[string]Resolution, len(unique))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for _, u := range unique {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			defer func() { <-sem }()
			res := r.Resolve(ctx, u)
			mu.Lock()
			out[u] = res
			mu.Unlock()
		}(u)
	}
	wg.Wait()

	resolved := 0
	for _, res := range out {
		if res.Resolved() {
			resolved++
		}
	}
	slog.Info("linkresolve: done", "urls", len(unique), "resolved", resolved, "workers", workers)
	return out
}
