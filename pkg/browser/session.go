// Package browser wraps chromedp with a session lifecycle suited to
// scraping: one browser process per session, explicit teardown, and
// fault classification on every driver call.
package browser

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jhulett18/threadsrecon/pkg/config"
	"github.com/jhulett18/threadsrecon/pkg/errors"
	"github.com/jhulett18/threadsrecon/pkg/logger"
)

// Session owns a browser process and a single tab within it. A Session
// is not safe for concurrent use; run one per worker.
type Session struct {
	log logger.Logger
	cfg *config.ScraperConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	userAgent string

	quitOnce sync.Once
}

// NewSession launches a browser process and verifies it is responsive.
// The caller must call Quit when done.
func NewSession(ctx context.Context, cfg *config.ScraperConfig, log logger.Logger) (*Session, error) {
	s := &Session{
		log:       log.WithField("component", "browser"),
		cfg:       cfg,
		userAgent: pickUserAgent(cfg.UserAgents),
	}

	opts := s.buildAllocatorOptions()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	s.allocCtx = allocCtx
	s.allocCancel = allocCancel

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel

	// Confirm the browser actually started before handing out the session.
	checkCtx, cancel := context.WithTimeout(tabCtx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(checkCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Quit()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	s.log.WithField("user_agent", s.userAgent).Debug("Browser session started")
	return s, nil
}

// WithSession runs fn with a fresh session and guarantees teardown.
func WithSession(ctx context.Context, cfg *config.ScraperConfig, log logger.Logger, fn func(s *Session) error) error {
	s, err := NewSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Quit()
	return fn(s)
}

func (s *Session) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	b := s.cfg.Browser
	opts = append(opts,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", b.Headless),
		chromedp.Flag("incognito", b.Incognito),
		chromedp.Flag("disable-gpu", b.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(b.WindowSize.Width, b.WindowSize.Height),
		chromedp.UserAgent(s.userAgent),
	)

	for _, feature := range b.DisabledFeatures {
		opts = append(opts, chromedp.Flag(feature, true))
	}

	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	if bin := s.resolveBinary(); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	return opts
}

// resolveBinary returns the browser executable to launch. An explicit
// BrowserPath wins; ExecPath "auto" (or empty) falls back to discovery.
func (s *Session) resolveBinary() string {
	if s.cfg.BrowserPath != "" {
		return s.cfg.BrowserPath
	}
	if s.cfg.ExecPath != "" && s.cfg.ExecPath != "auto" {
		return s.cfg.ExecPath
	}
	return findChromeBinary()
}

// findChromeBinary locates a Chrome/Chromium binary on the host.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func pickUserAgent(pool []string) string {
	if len(pool) == 0 {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	}
	return pool[rand.Intn(len(pool))]
}

// UserAgent returns the user agent chosen for this session.
func (s *Session) UserAgent() string {
	return s.userAgent
}

// Navigate loads url in the session tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := s.cfg.Timeouts.PageLoad
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	if err := s.run(ctx, runCtx, chromedp.Navigate(url)); err != nil {
		return errors.Classify(err, url)
	}
	return nil
}

// WaitVisible blocks until sel is visible, bounded by timeout.
func (s *Session) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.cfg.Timeouts.ElementWait
	}
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	if err := s.run(ctx, runCtx, chromedp.WaitVisible(sel, chromedp.ByQuery)); err != nil {
		return errors.Classify(err, "")
	}
	return nil
}

// WaitReady blocks until sel exists in the DOM, bounded by timeout.
func (s *Session) WaitReady(ctx context.Context, sel string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.cfg.Timeouts.ElementWait
	}
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	if err := s.run(ctx, runCtx, chromedp.WaitReady(sel, chromedp.ByQuery)); err != nil {
		return errors.Classify(err, "")
	}
	return nil
}

// Click clicks the first element matching sel.
func (s *Session) Click(ctx context.Context, sel string) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.Timeouts.ElementWait)
	defer cancel()
	if err := s.run(ctx, runCtx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return errors.Classify(err, "")
	}
	return nil
}

// SendKeys types value into the element matching sel.
func (s *Session) SendKeys(ctx context.Context, sel, value string) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.Timeouts.ElementWait)
	defer cancel()
	if err := s.run(ctx, runCtx, chromedp.SendKeys(sel, value, chromedp.ByQuery)); err != nil {
		return errors.Classify(err, "")
	}
	return nil
}

// ExecuteScript evaluates expr in the page and unmarshals the result
// into out. Pass nil when the result is not needed.
func (s *Session) ExecuteScript(ctx context.Context, expr string, out interface{}) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.Timeouts.ElementWait)
	defer cancel()
	var action chromedp.Action
	if out == nil {
		action = chromedp.Evaluate(expr, nil)
	} else {
		action = chromedp.Evaluate(expr, out)
	}
	if err := s.run(ctx, runCtx, action); err != nil {
		return errors.Classify(err, "")
	}
	return nil
}

// PageSource returns the current document's outer HTML.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.Timeouts.ElementWait)
	defer cancel()
	var html string
	if err := s.run(ctx, runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", errors.Classify(err, "")
	}
	return html, nil
}

// CurrentURL returns the tab's current location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.Timeouts.ElementWait)
	defer cancel()
	var url string
	if err := s.run(ctx, runCtx, chromedp.Location(&url)); err != nil {
		return "", errors.Classify(err, "")
	}
	return url, nil
}

// Title returns the current document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.Timeouts.ElementWait)
	defer cancel()
	var title string
	if err := s.run(ctx, runCtx, chromedp.Title(&title)); err != nil {
		return "", errors.Classify(err, "")
	}
	return title, nil
}

// Screenshot captures the viewport to path. Failures are logged, never
// returned; a missing screenshot must not fail the operation that
// requested it.
func (s *Session) Screenshot(ctx context.Context, path string) {
	runCtx, cancel := context.WithTimeout(s.tabCtx, 10*time.Second)
	defer cancel()
	var buf []byte
	if err := s.run(ctx, runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		s.log.WithError(err).Warn("Screenshot capture failed")
		return
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.log.WithError(err).Warn("Screenshot directory creation failed")
			return
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		s.log.WithError(err).Warn("Screenshot write failed")
	}
}

// run executes actions on the tab while honoring the caller's context.
func (s *Session) run(callerCtx, runCtx context.Context, actions ...chromedp.Action) error {
	if err := callerCtx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(runCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-callerCtx.Done():
		return callerCtx.Err()
	}
}

// Quit terminates the tab and the browser process. Safe to call more
// than once; only the first call does work.
func (s *Session) Quit() {
	s.quitOnce.Do(func() {
		if s.tabCancel != nil {
			s.tabCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		s.log.Debug("Browser session closed")
	})
}
