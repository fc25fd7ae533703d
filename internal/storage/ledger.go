// Package storage records which ranges have been archived so scheduled runs
// do not repeat finished work.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record describes one successful archive run.
type Record struct {
	Posts     int       `json:"posts"`
	Documents []string  `json:"documents"`
	FromCache bool      `json:"from_cache"`
	At        time.Time `json:"at"`
}

// Ledger is implemented by FileStore and RedisStore.
type Ledger interface {
	IsArchived(ctx context.Context, rangeKey string) (bool, error)
	Get(ctx context.Context, rangeKey string) (Record, bool, error)
	MarkArchived(ctx context.Context, rangeKey string, rec Record) error
}

// FileStore keeps one JSON record per range under Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(rangeKey string) string {
	return filepath.Join(s.Dir, rangeKey+".done.json")
}

func (s *FileStore) IsArchived(ctx context.Context, rangeKey string) (bool, error) {
	_, err := os.Stat(s.path(rangeKey))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *FileStore) Get(ctx context.Context, rangeKey string) (Record, bool, error) {
	b, err := os.ReadFile(s.path(rangeKey))
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode run record: %w", err)
	}
	return rec, true, nil
}

func (s *FileStore) MarkArchived(ctx context.Context, rangeKey string, rec Record) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(rangeKey), b, 0o644)
}
