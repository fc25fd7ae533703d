package output

import (
	"os"
	"path/filepath"
	"testing"

	"post-archivist/internal/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault", "x")
	w := Writer{Dir: dir}

	p, err := w.Write(render.Document{Date: "2026-02-21", Content: "first\n"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x-post-2026-02-21.md"), p)

	_, err = w.Write(render.Document{Date: "2026-02-21", Content: "second\n"})
	require.NoError(t, err)
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPathFormat(t *testing.T) {
	w := Writer{Dir: "/out", FilenameFormat: "2006/01/posts-20060102"}
	p, err := w.Path("2026-02-21")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "2026", "02", "posts-20260221.md"), p)

	_, err = w.Path("21/02/2026")
	assert.Error(t, err)
}
