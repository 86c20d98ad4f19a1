package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhulett18/threadsrecon/pkg/config"
	"github.com/jhulett18/threadsrecon/pkg/logger"
	"github.com/jhulett18/threadsrecon/pkg/threads"
)

func testCollector(t *testing.T, maxFileSize int64) *Collector {
	t.Helper()
	c, err := New(config.MediaConfig{
		Enabled:             true,
		OutputDir:           t.TempDir(),
		MaxFileSize:         maxFileSize,
		ConcurrentDownloads: 2,
		DownloadsPerMinute:  100,
		DownloadTimeout:     5 * time.Second,
		CollectImages:       true,
		CollectVideos:       true,
	}, logger.GetLogger())
	require.NoError(t, err)
	return c
}

func TestAddMediaURLDedup(t *testing.T) {
	c := testCollector(t, 0)

	url := "https://scontent.cdninstagram.com/v/photo.jpg"
	assert.True(t, c.AddMediaURL(url, "", "post 1", "post"))
	assert.False(t, c.AddMediaURL(url, "", "post 1", "post"))
	assert.Equal(t, int64(1), c.Stats().TotalDiscovered)
}

func TestAddMediaURLClassification(t *testing.T) {
	c := testCollector(t, 0)

	tests := []struct {
		name        string
		url         string
		contentType string
		want        bool
	}{
		{"image extension", "https://example.com/a/photo.png", "", true},
		{"video extension", "https://example.com/a/clip.mp4", "", true},
		{"content type wins", "https://example.com/asset?id=1", "image/jpeg", true},
		{"cdn pattern", "https://scontent-lhr8-1.cdninstagram.com/v/t51/img.jpg?se=7", "", true},
		{"avatar pattern", "https://example.com/avatar/123", "", true},
		{"not media", "https://example.com/about.html", "", false},
		{"plain page", "https://example.com/profile", "text/html", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.AddMediaURL(tt.url, tt.contentType, "", "test"))
		})
	}
}

func TestAddMediaURLHonorsTypeToggles(t *testing.T) {
	c, err := New(config.MediaConfig{
		OutputDir:     t.TempDir(),
		CollectImages: true,
		CollectVideos: false,
	}, logger.GetLogger())
	require.NoError(t, err)

	assert.True(t, c.AddMediaURL("https://example.com/p/photo.jpg", "", "", "post"))
	assert.False(t, c.AddMediaURL("https://example.com/v/clip.mp4", "", "", "post"))
}

func TestDownloadAllMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, ".jpg"):
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg-bytes"))
		case strings.HasSuffix(r.URL.Path, ".mp4"):
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("mp4-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := testCollector(t, 0)
	require.True(t, c.AddMediaURL(srv.URL+"/p/photo.jpg", "", "post 1", "post"))
	require.True(t, c.AddMediaURL(srv.URL+"/v/clip.mp4", "", "post 2", "post"))
	require.True(t, c.AddMediaURL(srv.URL+"/p/second_photo.jpg", "", "post 3", "post"))

	stats, err := c.DownloadAllMedia(context.Background(), "jdoe")
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalDiscovered)
	assert.Equal(t, int64(3), stats.TotalDownloaded)
	assert.Equal(t, int64(0), stats.TotalFailed)

	userDir := filepath.Join(c.store.BaseDir(), "jdoe")
	assert.FileExists(t, filepath.Join(userDir, "images", "photo.jpg"))
	assert.FileExists(t, filepath.Join(userDir, "videos", "clip.mp4"))
	assert.FileExists(t, filepath.Join(userDir, "media_metadata.json"))

	var manifest map[string]*threads.MediaAsset
	require.NoError(t, c.store.LoadJSON(filepath.Join(userDir, "media_metadata.json"), &manifest))
	require.Len(t, manifest, 3)
	photo := manifest[srv.URL+"/p/photo.jpg"]
	require.NotNil(t, photo)
	assert.True(t, photo.Downloaded)
	assert.Equal(t, int64(len("jpeg-bytes")), photo.FileSize)
}

func TestDownloadFailureIsolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bad") {
			http.Error(w, "nope", http.StatusForbidden)
			return
		}
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	c := testCollector(t, 0)
	require.True(t, c.AddMediaURL(srv.URL+"/p/good.jpg", "", "", "post"))
	require.True(t, c.AddMediaURL(srv.URL+"/p/bad.jpg", "", "", "post"))

	stats, err := c.DownloadAllMedia(context.Background(), "jdoe")
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.TotalDownloaded)
	assert.Equal(t, int64(1), stats.TotalFailed)
}

func TestDownloadSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Length: the cap must trigger mid-stream.
		w.(http.Flusher).Flush()
		w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer srv.Close()

	c := testCollector(t, 100)
	require.True(t, c.AddMediaURL(srv.URL+"/p/huge.jpg", "", "", "post"))

	stats, err := c.DownloadAllMedia(context.Background(), "jdoe")
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.TotalFailed)
	assert.Equal(t, int64(0), stats.TotalDownloaded)

	// No truncated file may be left behind.
	assert.NoFileExists(t, filepath.Join(c.store.BaseDir(), "jdoe", "images", "huge.jpg"))
}

func TestDownloadSkipsExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	c := testCollector(t, 0)
	require.True(t, c.AddMediaURL(srv.URL+"/p/photo.jpg", "", "", "post"))

	_, err := c.DownloadAllMedia(context.Background(), "jdoe")
	require.NoError(t, err)

	// Second run over the same asset counts it as skipped.
	c.assets[srv.URL+"/p/photo.jpg"].Downloaded = false
	stats, err := c.DownloadAllMedia(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalSkipped)
}

type countingLimiter struct {
	waits  int
	resets int
}

func (l *countingLimiter) Allow() bool { return true }
func (l *countingLimiter) Wait()       { l.waits++ }
func (l *countingLimiter) Reset()      { l.resets++ }

func TestDownloadRateLimiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	c := testCollector(t, 0)
	require.NotNil(t, c.limiter)

	// Each fetch takes a token; cache hits and reset bypass the bucket.
	lim := &countingLimiter{}
	c.limiter = lim
	require.True(t, c.AddMediaURL(srv.URL+"/p/one.jpg", "", "", "post"))
	require.True(t, c.AddMediaURL(srv.URL+"/p/two.jpg", "", "", "post"))

	// ConcurrentDownloads is 2 in testCollector; run serially so the
	// counter needs no locking.
	c.cfg.ConcurrentDownloads = 1
	stats, err := c.DownloadAllMedia(context.Background(), "jdoe")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalDownloaded)
	assert.Equal(t, 2, lim.waits)

	c.ResetCollection()
	assert.Equal(t, 1, lim.resets)

	// Disabling the rate leaves the bucket out entirely.
	unlimited, err := New(config.MediaConfig{
		OutputDir:     t.TempDir(),
		CollectImages: true,
	}, logger.GetLogger())
	require.NoError(t, err)
	assert.Nil(t, unlimited.limiter)
}

func TestResetCollection(t *testing.T) {
	c := testCollector(t, 0)
	require.True(t, c.AddMediaURL("https://example.com/p/photo.jpg", "", "", "post"))

	c.ResetCollection()
	assert.Equal(t, int64(0), c.Stats().TotalDiscovered)
	// The same URL is collectible again after a reset.
	assert.True(t, c.AddMediaURL("https://example.com/p/photo.jpg", "", "", "post"))
}

func TestGenerateFilename(t *testing.T) {
	tests := []struct {
		name string
		url  string
		typ  threads.MediaType
		ct   string
		want string
	}{
		{"name from path", "https://cdn.example.com/v/t51/photo_1.jpg?se=7&tok=abc", threads.MediaTypeImage, "", "photo_1.jpg"},
		{"unsafe chars replaced", "https://cdn.example.com/a%3Cb%3E.jpg", threads.MediaTypeImage, "", "a_b_.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generateFilename(tt.url, tt.typ, tt.ct))
		})
	}

	// No usable name falls back to a hash with a type-derived extension.
	got := generateFilename("https://cdn.example.com/assets/12345", threads.MediaTypeVideo, "")
	assert.True(t, strings.HasSuffix(got, ".mp4"), got)
	assert.Len(t, got, 12+len(".mp4"))
}
