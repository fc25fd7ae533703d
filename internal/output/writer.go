// Package output writes rendered day documents to disk.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"post-archivist/internal/render"
	"post-archivist/internal/timerange"
)

// Writer places each document at Dir/<date formatted with FilenameFormat>.md,
// replacing any previous file for that date.
type Writer struct {
	Dir            string
	FilenameFormat string
}

// Path returns where the document for date (YYYY-MM-DD) is written.
func (w Writer) Path(date string) (string, error) {
	d, err := time.ParseInLocation("2006-01-02", date, timerange.Local)
	if err != nil {
		return "", fmt.Errorf("document date %q: %w", date, err)
	}
	layout := w.FilenameFormat
	if layout == "" {
		layout = "x-post-2006-01-02"
	}
	return filepath.Join(w.Dir, d.Format(layout)+".md"), nil
}

// Write stores doc and returns its path.
func (w Writer) Write(doc render.Document) (string, error) {
	p, err := w.Path(doc.Date)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, []byte(doc.Content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return "", fmt.Errorf("rename %s: %w", p, err)
	}
	return p, nil
}
