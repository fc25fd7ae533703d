// Package media downloads post attachments next to the day documents.
// Photos are transcoded to WebP; videos and animated gifs keep their
// best mp4 variant.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"post-archivist/internal/model"

	"github.com/chai2010/webp"
)

const maxMediaBytes = 64 << 20

// Options configures a Downloader.
type Options struct {
	// Dir is where files are written; RelDir is how documents refer to it.
	Dir         string
	RelDir      string
	WebPQuality int
	Timeout     time.Duration
}

type Downloader struct {
	dir        string
	relDir     string
	quality    int
	httpClient *http.Client
}

func New(opts Options) *Downloader {
	if opts.WebPQuality <= 0 || opts.WebPQuality > 100 {
		opts.WebPQuality = 80
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RelDir == "" {
		opts.RelDir = filepath.Base(opts.Dir)
	}
	return &Downloader{
		dir:        opts.Dir,
		relDir:     filepath.ToSlash(opts.RelDir),
		quality:    opts.WebPQuality,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// Fetch stores every attachment and article cover referenced by the primary
// or included posts of c and returns media key to document-relative path. Files already on disk
// are reused. Failures are logged and the key is left out.
func (d *Downloader) Fetch(ctx context.Context, c model.PostCollection) map[string]string {
	byKey := make(map[string]model.Media, len(c.Includes.Media))
	for _, m := range c.Includes.Media {
		byKey[m.Key] = m
	}
	var keys []string
	seen := map[string]bool{}
	for _, group := range [][]model.Post{c.Posts, c.Includes.Posts} {
		for _, p := range group {
			for _, k := range p.MediaKeys() {
				if _, ok := byKey[k]; ok && !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
	}
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		slog.Warn("media: create dir failed", "dir", d.dir, "error", err)
		return out
	}

	start := time.Now()
	for _, k := range keys {
		if ctx.Err() != nil {
			break
		}
		name, err := d.store(ctx, byKey[k])
		if err != nil {
			slog.Warn("media: download failed", "key", k, "type", byKey[k].Type, "error", err)
			continue
		}
		out[k] = path.Join(d.relDir, name)
	}
	slog.Info("media: done", "referenced", len(keys), "stored", len(out), "duration", time.Since(start))
	return out
}

func (d *Downloader) store(ctx context.Context, m model.Media) (string, error) {
	if name, ok := d.existing(m.Key); ok {
		return name, nil
	}
	switch m.Type {
	case "photo":
		return d.storePhoto(ctx, m)
	case "video", "animated_gif":
		src := bestVideo(m.Variants)
		if src == "" {
			return "", errors.New("no mp4 variant")
		}
		raw, err := d.get(ctx, src)
		if err != nil {
			return "", err
		}
		name := m.Key + ".mp4"
		return name, writeFile(filepath.Join(d.dir, name), raw)
	default:
		return "", fmt.Errorf("unsupported media type %q", m.Type)
	}
}

func (d *Downloader) storePhoto(ctx context.Context, m model.Media) (string, error) {
	if m.URL == "" {
		return "", errors.New("photo has no url")
	}
	raw, err := d.get(ctx, m.URL)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		if alt := altPhotoURL(m.URL); alt != "" {
			raw, err = d.get(ctx, alt)
		}
	}
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		// Keep formats the standard decoders do not know as-is.
		name := m.Key + "." + extension(m.URL)
		slog.Debug("media: keeping original bytes", "key", m.Key, "error", err)
		return name, writeFile(filepath.Join(d.dir, name), raw)
	}
	name := m.Key + ".webp"
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(d.quality)}); err != nil {
		return "", fmt.Errorf("encode webp: %w", err)
	}
	return name, writeFile(filepath.Join(d.dir, name), buf.Bytes())
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string { return fmt.Sprintf("GET %s: status %d", e.url, e.code) }

func (d *Downloader) get(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, url: src}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	return b, nil
}

func (d *Downloader) existing(key string) (string, bool) {
	matches, _ := filepath.Glob(filepath.Join(d.dir, key+".*"))
	for _, m := range matches {
		if strings.HasSuffix(m, ".tmp") {
			continue
		}
		return filepath.Base(m), true
	}
	return "", false
}

func writeFile(p string, b []byte) error {
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("rename %s: %w", p, err)
	}
	return nil
}

func bestVideo(vs []model.Variant) string {
	best, rate := "", -1
	for _, v := range vs {
		if v.ContentType != "video/mp4" {
			continue
		}
		if v.BitRate > rate {
			best, rate = v.URL, v.BitRate
		}
	}
	return best
}

func extension(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return "jpg"
	}
	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	switch ext {
	case "jpg", "jpeg", "png", "gif", "webp":
		return ext
	}
	return "jpg"
}

// altPhotoURL rewrites a legacy pbs.twimg.com photo path into the
// ?format=&name=large form served for newer media.
func altPhotoURL(src string) string {
	u, err := url.Parse(src)
	if err != nil || u.Hostname() != "pbs.twimg.com" {
		return ""
	}
	dir, file := path.Split(u.Path)
	ext := path.Ext(file)
	if ext == "" {
		return ""
	}
	base := strings.TrimSuffix(file, ext)
	return fmt.Sprintf("https://pbs.twimg.com%s%s?format=%s&name=large", dir, base, strings.TrimPrefix(ext, "."))
}
