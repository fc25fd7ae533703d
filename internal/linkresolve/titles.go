package linkresolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

// TitleStore persists resolutions across runs.
type TitleStore interface {
	Load(ctx context.Context) (map[string]Resolution, error)
	// Save merges entries into what is already stored.
	Save(ctx context.Context, entries map[string]Resolution) error
}

// FileTitles keeps all resolutions in a single JSON object on disk.
type FileTitles struct {
	Path string
	mu   sync.Mutex
}

func NewFileTitles(dir string) *FileTitles {
	return &FileTitles{Path: filepath.Join(dir, "links.json")}
}

func (f *FileTitles) Load(ctx context.Context) (map[string]Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *FileTitles) read() (map[string]Resolution, error) {
	out := map[string]Resolution{}
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read titles: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		slog.Warn("linkresolve: discarding unreadable title cache", "path", f.Path, "error", err)
		return map[string]Resolution{}, nil
	}
	return out, nil
}

func (f *FileTitles) Save(ctx context.Context, entries map[string]Resolution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	all, err := f.read()
	if err != nil {
		return err
	}
	for u, res := range entries {
		all[u] = res
	}
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode titles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write titles: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("rename titles: %w", err)
	}
	return nil
}

const titlesKey = "archive:links"

// RedisTitles stores one hash field per URL.
type RedisTitles struct {
	rdb *redis.Client
}

func NewRedisTitles(rdb *redis.Client) *RedisTitles {
	return &RedisTitles{rdb: rdb}
}

func (s *RedisTitles) Load(ctx context.Context) (map[string]Resolution, error) {
	raw, err := s.rdb.HGetAll(ctx, titlesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", titlesKey, err)
	}
	out := make(map[string]Resolution, len(raw))
	for u, v := range raw {
		var res Resolution
		if err := json.Unmarshal([]byte(v), &res); err != nil {
			continue
		}
		out[u] = res
	}
	return out, nil
}

func (s *RedisTitles) Save(ctx context.Context, entries map[string]Resolution) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]any, 0, len(entries)*2)
	for u, res := range entries {
		b, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encode %s: %w", u, err)
		}
		values = append(values, u, string(b))
	}
	if err := s.rdb.HSet(ctx, titlesKey, values...).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", titlesKey, err)
	}
	return nil
}
