package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"post-archivist/internal/model"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		img.Set(x, 2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFetchPhotosAndVideos(t *testing.T) {
	var hits atomic.Int32
	photo := pngBytes(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/img/p1.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(photo)
	})
	mux.HandleFunc("/vid/high.mp4", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("mp4-high"))
	})
	mux.HandleFunc("/vid/low.mp4", func(w http.ResponseWriter, r *http.Request) {
		t.Error("low bitrate variant fetched")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := model.PostCollection{
		Posts: []model.Post{{ID: "1", Text: "pics", Attachments: model.Attachments{MediaKeys: []string{"3_p1", "unknown"}}}},
		Includes: model.Includes{
			Posts: []model.Post{{ID: "2", Text: "clip", Attachments: model.Attachments{MediaKeys: []string{"7_v1", "3_p1"}}}},
			Media: []model.Media{
				{Key: "3_p1", Type: "photo", URL: srv.URL + "/img/p1.png"},
				{Key: "7_v1", Type: "video", Variants: []model.Variant{
					{ContentType: "application/x-mpegURL", URL: srv.URL + "/vid/playlist.m3u8"},
					{ContentType: "video/mp4", BitRate: 256000, URL: srv.URL + "/vid/low.mp4"},
					{ContentType: "video/mp4", BitRate: 2176000, URL: srv.URL + "/vid/high.mp4"},
				}},
			},
		},
	}

	dir := filepath.Join(t.TempDir(), "media")
	d := New(Options{Dir: dir, RelDir: "media", WebPQuality: 75})
	got := d.Fetch(context.Background(), c)
	assert.Equal(t, map[string]string{"3_p1": "media/3_p1.webp", "7_v1": "media/7_v1.mp4"}, got)
	assert.Equal(t, int32(2), hits.Load())

	f, err := os.Open(filepath.Join(dir, "3_p1.webp"))
	require.NoError(t, err)
	defer f.Close()
	img, err := webp.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	b, err := os.ReadFile(filepath.Join(dir, "7_v1.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "mp4-high", string(b))

	again := d.Fetch(context.Background(), c)
	assert.Equal(t, got, again)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchArticleCovers(t *testing.T) {
	photo := pngBytes(t)
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write(photo)
	}))
	defer srv.Close()

	c := model.PostCollection{
		Posts: []model.Post{{ID: "1", Text: "https://t.co/a",
			Article: &model.Article{Title: "Long read", CoverMedia: "3_cover"}}},
		Includes: model.Includes{
			Posts: []model.Post{{ID: "2", Text: "https://t.co/b",
				Article: &model.Article{Title: "Quoted read", CoverMedia: "3_qcover"}}},
			Media: []model.Media{
				{Key: "3_cover", Type: "photo", URL: srv.URL + "/cover.png"},
				{Key: "3_qcover", Type: "photo", URL: srv.URL + "/qcover.png"},
			},
		},
	}
	got := New(Options{Dir: t.TempDir(), RelDir: "media"}).Fetch(context.Background(), c)
	assert.Equal(t, map[string]string{"3_cover": "media/3_cover.webp", "3_qcover": "media/3_qcover.webp"}, got)
	assert.ElementsMatch(t, []string{"/cover.png", "/qcover.png"}, paths)
}

func TestFetchSkipsFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := model.PostCollection{
		Posts: []model.Post{{ID: "1", Text: "x", Attachments: model.Attachments{MediaKeys: []string{"a", "b"}}}},
		Includes: model.Includes{Media: []model.Media{
			{Key: "a", Type: "photo", URL: srv.URL + "/gone.jpg"},
			{Key: "b", Type: "video"},
		}},
	}
	got := New(Options{Dir: t.TempDir()}).Fetch(context.Background(), c)
	assert.Empty(t, got)
}

func TestAltPhotoURL(t *testing.T) {
	assert.Equal(t, "https://pbs.twimg.com/media/AbC?format=jpg&name=large",
		altPhotoURL("https://pbs.twimg.com/media/AbC.jpg"))
	assert.Equal(t, "", altPhotoURL("https://example.com/media/AbC.jpg"))
	assert.Equal(t, "", altPhotoURL("https://pbs.twimg.com/media/AbC"))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "png", extension("https://pbs.twimg.com/media/x.png"))
	assert.Equal(t, "jpg", extension("https://pbs.twimg.com/media/x"))
	assert.Equal(t, "jpg", extension("https://pbs.twimg.com/media/x.tiff"))
}
