// Package media collects media URLs discovered during scraping and
// downloads them concurrently with size caps and a per-user manifest.
package media

import (
	"context"
	"crypto/md5"
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jhulett18/threadsrecon/internal/downloader"
	"github.com/jhulett18/threadsrecon/pkg/config"
	"github.com/jhulett18/threadsrecon/pkg/logger"
	"github.com/jhulett18/threadsrecon/pkg/ratelimit"
	"github.com/jhulett18/threadsrecon/pkg/storage"
	"github.com/jhulett18/threadsrecon/pkg/threads"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".svg": true, ".ico": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true, ".avi": true,
	".mkv": true, ".flv": true, ".wmv": true, ".m4v": true,
}

var imageMimeTypes = map[string]bool{
	"image/jpeg": true, "image/png": true, "image/gif": true,
	"image/webp": true, "image/bmp": true, "image/svg+xml": true,
	"image/x-icon": true,
}

var videoMimeTypes = map[string]bool{
	"video/mp4": true, "video/webm": true, "video/quicktime": true,
	"video/avi": true, "video/x-msvideo": true, "video/x-matroska": true,
	"video/x-flv": true,
}

var imageURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/image/`),
	regexp.MustCompile(`(?i)/img/`),
	regexp.MustCompile(`(?i)/photo/`),
	regexp.MustCompile(`(?i)/picture/`),
	regexp.MustCompile(`(?i)/avatar/`),
	regexp.MustCompile(`(?i)/profile.*\.(jpg|jpeg|png|gif|webp)`),
	regexp.MustCompile(`(?i)\.cdninstagram\.com.*\.(jpg|jpeg|png|gif|webp)`),
	regexp.MustCompile(`(?i)scontent.*\.(jpg|jpeg|png|gif|webp)`),
}

var videoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/video/`),
	regexp.MustCompile(`(?i)/videos/`),
	regexp.MustCompile(`(?i)/media.*\.(mp4|webm|mov)`),
	regexp.MustCompile(`(?i)\.cdninstagram\.com.*\.(mp4|webm)`),
	regexp.MustCompile(`(?i)scontent.*\.(mp4|webm)`),
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// Collector accumulates media URLs during a profile fetch and
// downloads them in one batch. First-seen-wins dedup is keyed by the
// exact URL string. One collector serves one identity at a time;
// ResetCollection prepares it for the next.
type Collector struct {
	cfg     config.MediaConfig
	store   *storage.Manager
	client  *downloader.Client
	limiter ratelimit.Limiter
	log     logger.Logger

	mu     sync.Mutex
	assets map[string]*threads.MediaAsset
	stats  threads.DownloadStats
}

// New returns a collector writing under cfg.OutputDir.
func New(cfg config.MediaConfig, log logger.Logger) (*Collector, error) {
	store, err := storage.NewManager(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	c := &Collector{
		cfg:    cfg,
		store:  store,
		client: downloader.NewClient(timeout),
		log:    log.WithField("component", "media"),
		assets: make(map[string]*threads.MediaAsset),
	}
	// Downloads hit the same CDN the browser session does; cap the
	// request rate independently of worker count.
	if cfg.DownloadsPerMinute > 0 {
		c.limiter = ratelimit.NewTokenBucket(cfg.DownloadsPerMinute, time.Minute)
	}
	return c, nil
}

// Client exposes the underlying HTTP client. Used by tests to point
// downloads at a local server.
func (c *Collector) Client() *downloader.Client {
	return c.client
}

// AddMediaURL queues a URL for download if it is recognized as media
// and not seen before. Returns whether the URL was added.
func (c *Collector) AddMediaURL(rawURL, contentType, postID, context string) bool {
	mediaType, ok := c.classify(rawURL, contentType)
	if !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.assets[rawURL]; seen {
		return false
	}

	c.assets[rawURL] = &threads.MediaAsset{
		URL:          rawURL,
		Type:         mediaType,
		ContentType:  contentType,
		PostID:       postID,
		Context:      context,
		DiscoveredAt: time.Now(),
	}
	c.stats.AddDiscovered()
	return true
}

// classify decides whether a URL is collectible media: content type
// first, then the path extension, then known URL patterns.
func (c *Collector) classify(rawURL, contentType string) (threads.MediaType, bool) {
	if contentType != "" {
		ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
		if c.cfg.CollectImages && imageMimeTypes[ct] {
			return threads.MediaTypeImage, true
		}
		if c.cfg.CollectVideos && videoMimeTypes[ct] {
			return threads.MediaTypeVideo, true
		}
	}

	lowerPath := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		lowerPath = strings.ToLower(parsed.Path)
	}
	if ext := path.Ext(lowerPath); ext != "" {
		if imageExtensions[ext] {
			return threads.MediaTypeImage, c.cfg.CollectImages
		}
		if videoExtensions[ext] {
			return threads.MediaTypeVideo, c.cfg.CollectVideos
		}
	}

	if c.cfg.CollectImages {
		for _, p := range imageURLPatterns {
			if p.MatchString(rawURL) {
				return threads.MediaTypeImage, true
			}
		}
	}
	if c.cfg.CollectVideos {
		for _, p := range videoURLPatterns {
			if p.MatchString(rawURL) {
				return threads.MediaTypeVideo, true
			}
		}
	}
	return "", false
}

// DownloadAllMedia downloads every queued asset for username with
// bounded concurrency. One asset's failure never cancels its siblings;
// it is recorded in the asset and the stats. The manifest is written
// next to the downloads when the batch completes.
func (c *Collector) DownloadAllMedia(ctx context.Context, username string) (threads.DownloadStatsSnapshot, error) {
	c.mu.Lock()
	pending := make([]*threads.MediaAsset, 0, len(c.assets))
	for _, asset := range c.assets {
		pending = append(pending, asset)
	}
	c.mu.Unlock()

	if len(pending) == 0 {
		c.log.Info("No media URLs to download")
		return c.stats.Snapshot(), nil
	}

	userDir, err := c.store.UserDir(username)
	if err != nil {
		return c.stats.Snapshot(), err
	}

	c.log.WithFields(map[string]interface{}{
		"username": username,
		"count":    len(pending),
	}).Info("Starting media downloads")

	workers := int64(c.cfg.ConcurrentDownloads)
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(workers)
	var wg sync.WaitGroup
	for _, asset := range pending {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(asset *threads.MediaAsset) {
			defer wg.Done()
			defer sem.Release(1)
			c.downloadOne(ctx, asset, userDir)
		}(asset)
	}
	wg.Wait()

	if err := c.writeManifest(userDir); err != nil {
		c.log.WithError(err).Warn("Failed to save media manifest")
	}

	snap := c.stats.Snapshot()
	c.log.WithFields(map[string]interface{}{
		"discovered": snap.TotalDiscovered,
		"downloaded": snap.TotalDownloaded,
		"failed":     snap.TotalFailed,
		"skipped":    snap.TotalSkipped,
		"bytes":      snap.BytesDownloaded,
	}).Info("Media downloads finished")
	return snap, nil
}

// downloadOne handles a single asset. All outcomes are recorded on the
// asset; nothing propagates.
func (c *Collector) downloadOne(ctx context.Context, asset *threads.MediaAsset, userDir string) {
	subdir := "images"
	if asset.Type == threads.MediaTypeVideo {
		subdir = "videos"
	}
	filename := generateFilename(asset.URL, asset.Type, asset.ContentType)
	filePath := filepath.Join(userDir, subdir, filename)

	if c.store.Exists(filePath) {
		asset.Downloaded = true
		asset.FilePath = filePath
		c.stats.AddSkipped()
		return
	}

	fail := func(err error) {
		asset.DownloadError = err.Error()
		c.stats.AddFailed()
		c.log.WithField("url", asset.URL).WithError(err).Warn("Media download failed")
	}

	if c.limiter != nil {
		c.limiter.Wait()
	}

	resp, err := c.client.Fetch(ctx, asset.URL)
	if err != nil {
		fail(err)
		return
	}
	defer resp.Body.Close()

	if c.cfg.MaxFileSize > 0 && resp.ContentLength > c.cfg.MaxFileSize {
		fail(fmt.Errorf("file too large: %d bytes", resp.ContentLength))
		return
	}

	size, err := c.store.SaveStream(resp.Body, filePath, c.cfg.MaxFileSize)
	if err != nil {
		fail(err)
		return
	}

	asset.Downloaded = true
	asset.FilePath = filePath
	asset.FileSize = size
	c.stats.AddDownloaded()
	c.stats.AddBytes(size)
}

// generateFilename derives a safe filename from the URL path, falling
// back to a hash of the URL with an extension guessed from the content
// type.
func generateFilename(rawURL string, mediaType threads.MediaType, contentType string) string {
	name := ""
	if parsed, err := url.Parse(rawURL); err == nil {
		name, _ = url.PathUnescape(path.Base(parsed.Path))
	}

	if name == "" || name == "." || name == "/" || !strings.Contains(name, ".") {
		hash := fmt.Sprintf("%x", md5.Sum([]byte(rawURL)))[:12]
		ext := ""
		if contentType != "" {
			if exts, err := mime.ExtensionsByType(strings.TrimSpace(strings.Split(contentType, ";")[0])); err == nil && len(exts) > 0 {
				ext = exts[0]
			}
		}
		if ext == "" {
			ext = ".jpg"
			if mediaType == threads.MediaTypeVideo {
				ext = ".mp4"
			}
		}
		name = hash + ext
	}

	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}

// writeManifest persists all per-asset metadata next to the downloads.
func (c *Collector) writeManifest(userDir string) error {
	c.mu.Lock()
	manifest := make(map[string]*threads.MediaAsset, len(c.assets))
	for u, asset := range c.assets {
		manifest[u] = asset
	}
	c.mu.Unlock()
	return c.store.SaveJSON(filepath.Join(userDir, "media_metadata.json"), manifest)
}

// Stats returns a snapshot of the download counters.
func (c *Collector) Stats() threads.DownloadStatsSnapshot {
	return c.stats.Snapshot()
}

// ResetCollection clears all collector state for the next identity.
func (c *Collector) ResetCollection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets = make(map[string]*threads.MediaAsset)
	c.stats.Reset()
	if c.limiter != nil {
		c.limiter.Reset()
	}
}
