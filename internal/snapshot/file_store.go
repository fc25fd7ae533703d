package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"post-archivist/internal/model"
	"post-archivist/internal/timerange"
)

// FileStore keeps one JSON file per range under Dir, named <key>.json.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(r timerange.Range) string {
	return filepath.Join(s.Dir, r.Key()+".json")
}

// Lookup reads and validates the entry for r.
func (s *FileStore) Lookup(_ context.Context, r timerange.Range) (model.PostCollection, bool) {
	p := s.path(r)
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return model.PostCollection{}, false
	}
	if err != nil {
		slog.Warn("snapshot: read failed, treating as miss", "path", p, "error", err)
		return model.PostCollection{}, false
	}
	c, err := Decode(b)
	if err != nil {
		slog.Warn("snapshot: invalid entry, treating as miss", "path", p, "error", err)
		return model.PostCollection{}, false
	}
	c.FromCache = true
	return c, true
}

// Save overwrites the entry for r. The file is written to a temporary name
// and renamed so a failed write never leaves a truncated entry behind.
func (s *FileStore) Save(_ context.Context, r timerange.Range, c model.PostCollection) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create dir: %w", err)
	}
	b, err := Encode(c)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, r.Key()+".*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(r)); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}
