package scraper

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/jhulett18/threadsrecon/pkg/browser"
	"github.com/jhulett18/threadsrecon/pkg/config"
	"github.com/jhulett18/threadsrecon/pkg/errors"
	"github.com/jhulett18/threadsrecon/pkg/logger"
	"github.com/jhulett18/threadsrecon/pkg/ratelimit"
	"github.com/jhulett18/threadsrecon/pkg/retry"
	"github.com/jhulett18/threadsrecon/pkg/threads"
)

// Field sentinels mirror the output consumers already expect.
const (
	sentinelLoginRequired     = "Login required"
	sentinelFollowersNotFound = "Followers not found"
	sentinelFollowingNotFound = "Following count not found"
	sentinelNameNotFound      = "Name not found"
	sentinelPictureNotFound   = "Profile picture not found"
	sentinelBioNotFound       = "Bio not found"
	sentinelInstagramNotFound = "Instagram link not found"
)

// MediaSink receives media URLs discovered during collection. The
// media collector implements it; a nil sink disables discovery.
type MediaSink interface {
	AddMediaURL(url, contentType, postID, context string) bool
}

// Tracker remembers which identities a batch already fetched so a
// re-run can skip them.
type Tracker interface {
	IsFetched(username string) bool
	MarkFetched(username string) error
}

// Scraper fetches Threads profiles. Safe for concurrent use; each
// worker gets its own browser session because sessions are not
// reentrant.
type Scraper struct {
	cfg    *config.Config
	log    logger.Logger
	pacer  *ratelimit.Pacer
	media  MediaSink
	track  Tracker
	settle time.Duration
}

// New returns a scraper for the given configuration.
func New(cfg *config.Config, log logger.Logger) *Scraper {
	return &Scraper{
		cfg:    cfg,
		log:    log.WithField("component", "scraper"),
		pacer:  ratelimit.NewPacer(cfg.Scraper.Delays.MinWait, cfg.Scraper.Delays.MaxWait),
		settle: 2 * time.Second,
	}
}

// SetMediaSink routes discovered media URLs to sink.
func (sc *Scraper) SetMediaSink(sink MediaSink) {
	sc.media = sink
}

// SetTracker enables skip-already-fetched behavior across runs.
func (sc *Scraper) SetTracker(t Tracker) {
	sc.track = t
}

// FetchProfiles collects every username with a bounded worker pool.
// Each identity's failure becomes a stand-in error record; a batch
// never aborts because one profile failed.
func (sc *Scraper) FetchProfiles(ctx context.Context, usernames []string) threads.ProfileSet {
	results := make(threads.ProfileSet, len(usernames))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	workers := sc.cfg.Scraper.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, username := range usernames {
		username := username
		if sc.track != nil && sc.track.IsFetched(username) {
			sc.log.WithField("username", username).Info("Already fetched, skipping")
			continue
		}
		g.Go(func() error {
			record := sc.FetchProfile(gctx, username)
			mu.Lock()
			results[username] = record
			mu.Unlock()
			if record.Error == "" && sc.track != nil {
				if err := sc.track.MarkFetched(username); err != nil {
					sc.log.WithError(err).Warn("Checkpoint update failed")
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// FetchProfile collects one identity with a dedicated browser session.
// Session-level failures are folded into a stand-in record.
func (sc *Scraper) FetchProfile(ctx context.Context, username string) *threads.ProfileRecord {
	var record *threads.ProfileRecord
	err := browser.WithSession(ctx, &sc.cfg.Scraper, sc.log, func(s *browser.Session) error {
		auth := NewAuthenticator(s, &sc.cfg.Scraper, sc.log)
		if err := auth.Login(ctx, sc.cfg.Credentials.Username, sc.cfg.Credentials.Password); err != nil {
			return err
		}
		var err error
		record, err = sc.fetchProfile(ctx, s, auth.IsAuthenticated(), username)
		return err
	})
	if err != nil {
		sc.log.WithField("username", username).WithError(err).Error("Profile fetch failed")
		return threads.ErrorRecord(username, err)
	}
	return record
}

// fetchProfile runs the per-identity collection flow on an established
// session. Split out so tests can drive it with a scripted session.
func (sc *Scraper) fetchProfile(ctx context.Context, s Session, authenticated bool, username string) (*threads.ProfileRecord, error) {
	profileURL := sc.cfg.Scraper.BaseURL + "/@" + username
	record := threads.NewProfileRecord(username)
	log := sc.log.WithField("username", username)

	if err := sc.pacer.Pause(ctx); err != nil {
		return nil, err
	}

	retryCfg := retry.Config{
		MaxAttempts: sc.cfg.Scraper.Retries.MaxAttempts,
		Backoff:     &retry.ExponentialBackoff{BaseDelay: sc.cfg.Scraper.Retries.InitialDelay, Multiplier: 2},
		Logger:      log,
	}
	err := retry.Do(ctx, retryCfg, func(ctx context.Context) error {
		if err := s.Navigate(ctx, profileURL); err != nil {
			return err
		}
		return s.WaitReady(ctx, "body", sc.cfg.Scraper.Timeouts.PageLoad)
	})
	if err != nil {
		return nil, err
	}

	title, err := s.Title(ctx)
	if err != nil {
		return nil, err
	}
	if strings.Contains(title, "Page not found") || strings.Contains(title, "Error") {
		return nil, errors.New(errors.ErrorTypeNotFound, profileURL, "Profile not found or unavailable: %s", username)
	}

	doc, err := sc.document(ctx, s)
	if err != nil {
		return nil, err
	}
	sc.extractProfileHeader(doc, record)
	record.IsPrivate = isPrivateProfile(doc)

	if sc.media != nil && record.ProfilePicture != "" && record.ProfilePicture != sentinelPictureNotFound {
		sc.media.AddMediaURL(record.ProfilePicture, "", "", "profile")
	}

	if authenticated {
		sc.collectConnections(ctx, s, record, log)
	} else {
		log.Info("Skipping followers/following collection, not logged in")
		record.FollowersCount = threads.Sentinel(sentinelLoginRequired)
		record.FollowingCount = threads.Sentinel(sentinelLoginRequired)
	}

	log.Info("Collecting posts")
	posts, err := Collect(ctx, NewDocumentTarget(s, postFragmentSelector), threads.ExtractPost, sc.paginateOpts("post", log))
	if err != nil {
		return nil, err
	}
	record.Posts = posts
	record.PostsCount = threads.Count(posts.Len())
	sc.queuePostMedia(posts)

	log.Info("Collecting replies")
	if err := sc.navigateTab(ctx, s, profileURL+"/replies"); err != nil {
		return nil, err
	}
	replies, err := Collect(ctx, NewDocumentTarget(s, postFragmentSelector), threads.ExtractReply, sc.paginateOpts("reply", log))
	if err != nil {
		return nil, err
	}
	record.Replies = replies
	record.RepliesCount = threads.Count(replies.Len())

	log.Info("Collecting reposts")
	if err := sc.navigateTab(ctx, s, profileURL+"/reposts"); err != nil {
		return nil, err
	}
	reposts, err := Collect(ctx, NewDocumentTarget(s, postFragmentSelector), threads.ExtractRepost, sc.paginateOpts("repost", log))
	if err != nil {
		return nil, err
	}
	record.Reposts = reposts
	record.RepostsCount = threads.Count(reposts.Len())
	sc.queuePostMedia(reposts)

	return record, nil
}

// extractProfileHeader fills the static profile fields from the page.
// Every field is best-effort; a missing one gets its sentinel.
func (sc *Scraper) extractProfileHeader(doc *goquery.Document, record *threads.ProfileRecord) {
	record.Name = sentinelNameNotFound
	if name := strings.TrimSpace(doc.Find(`h1[dir="auto"]`).First().Text()); name != "" {
		record.Name = name
	}

	record.ProfilePicture = sentinelPictureNotFound
	if content := doc.Find(`meta[property="og:image"]`).First().AttrOr("content", ""); content != "" {
		record.ProfilePicture = content
	}

	record.Bio = sentinelBioNotFound
	if bio := strings.TrimSpace(doc.Find(`span[dir="auto"]`).Eq(3).Text()); bio != "" {
		record.Bio = bio
	}

	doc.Find(`link[rel="me"]`).Each(func(_ int, link *goquery.Selection) {
		if href := link.AttrOr("href", ""); href != "" {
			record.ExternalLinks = append(record.ExternalLinks, href)
		}
	})

	record.Instagram = sentinelInstagramNotFound
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if !strings.Contains(href, "threads.net") || !strings.Contains(href, "instagram.com") {
			return true
		}
		record.Instagram = unwrapRedirect(href)
		return false
	})
}

// isPrivateProfile reports whether the page shows the private-profile
// notice instead of content.
func isPrivateProfile(doc *goquery.Document) bool {
	private := false
	doc.Find(`span[dir="auto"]`).EachWithBreak(func(_ int, span *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(span.Text()), "profile is private") {
			private = true
			return false
		}
		return true
	})
	return private
}

// unwrapRedirect extracts the destination from the site's ?u= redirect
// wrapper, falling back to the raw href.
func unwrapRedirect(href string) string {
	if !strings.Contains(href, "u=") {
		return href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if dest := parsed.Query().Get("u"); dest != "" {
		return dest
	}
	return href
}

// collectConnections opens the followers and following modals and
// collects both lists. Failures degrade to sentinels, never abort the
// profile fetch.
func (sc *Scraper) collectConnections(ctx context.Context, s Session, record *threads.ProfileRecord, log logger.Logger) {
	log.Info("Collecting followers")
	if err := sc.openModal(ctx, s, `span[dir="auto"]`, " followers"); err != nil {
		log.WithError(err).Warn("Could not open followers modal")
		record.FollowersCount = threads.Sentinel(sentinelFollowersNotFound)
		record.FollowingCount = threads.Sentinel(sentinelFollowingNotFound)
		return
	}
	followers, err := Collect(ctx, NewDialogTarget(s, followerFragmentSelector), threads.ExtractFollower, sc.paginateOpts("follower", log))
	if err != nil {
		log.WithError(err).Warn("Follower collection failed")
		record.FollowersCount = threads.Sentinel(sentinelFollowersNotFound)
		record.FollowingCount = threads.Sentinel(sentinelFollowingNotFound)
		return
	}
	record.Followers = followers
	record.FollowersCount = threads.Count(followers.Len())

	log.Info("Collecting following")
	if err := sc.openModal(ctx, s, `span[dir="auto"]`, "Following"); err != nil {
		log.WithError(err).Warn("Could not open following modal")
		record.FollowingCount = threads.Sentinel(sentinelFollowingNotFound)
		sc.closeModal(ctx, s)
		return
	}
	following, err := Collect(ctx, NewDialogTarget(s, followerFragmentSelector), threads.ExtractFollower, sc.paginateOpts("following", log))
	if err != nil {
		log.WithError(err).Warn("Following collection failed")
		record.FollowingCount = threads.Sentinel(sentinelFollowingNotFound)
	} else {
		record.Following = following
		record.FollowingCount = threads.Count(following.Len())
	}

	sc.closeModal(ctx, s)
}

// openModal clicks the first element matching selector whose text
// contains marker, then waits for the dialog to settle.
func (sc *Scraper) openModal(ctx context.Context, s Session, selector, marker string) error {
	script := `(() => {
		for (const el of document.querySelectorAll(` + jsString(selector) + `)) {
			if (el.textContent.includes(` + jsString(marker) + `)) { el.click(); return true; }
		}
		return false;
	})()`
	var clicked bool
	if err := s.ExecuteScript(ctx, script, &clicked); err != nil {
		return err
	}
	if !clicked {
		return errors.New(errors.ErrorTypeMissingElement, "", "no element with text %q", marker)
	}
	return settle(ctx, sc.settle)
}

// closeModal dismisses an open dialog: Escape first, close button as
// the fallback. Best-effort.
func (sc *Scraper) closeModal(ctx context.Context, s Session) {
	const escape = `document.dispatchEvent(new KeyboardEvent('keydown', {key: 'Escape', keyCode: 27, bubbles: true}));`
	_ = s.ExecuteScript(ctx, escape, nil)
	_ = settle(ctx, sc.settle/2)

	var open bool
	if err := s.ExecuteScript(ctx, `document.querySelector("div[role='dialog']") !== null`, &open); err == nil && open {
		if err := s.Click(ctx, "div[role='dialog'] [aria-label='Close']"); err != nil {
			sc.log.WithError(err).Debug("Dialog close button not found")
		}
	}
}

func (sc *Scraper) navigateTab(ctx context.Context, s Session, url string) error {
	if err := sc.pacer.Pause(ctx); err != nil {
		return err
	}
	if err := s.Navigate(ctx, url); err != nil {
		return err
	}
	return settle(ctx, sc.settle)
}

func (sc *Scraper) queuePostMedia(posts *threads.Collection[threads.PostRecord]) {
	if sc.media == nil {
		return
	}
	posts.Each(func(key string, post threads.PostRecord) {
		for _, u := range post.MediaURLs {
			sc.media.AddMediaURL(u, "", key, "post")
		}
	})
}

func (sc *Scraper) paginateOpts(prefix string, log logger.Logger) PaginateOptions {
	return PaginateOptions{
		KeyPrefix:    prefix,
		MaxSameCount: sc.cfg.Scraper.MaxSameCount,
		Settle:       sc.settle,
		Log:          log,
	}
}

func (sc *Scraper) document(ctx context.Context, s Session) (*goquery.Document, error) {
	src, err := s.PageSource(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(src))
}

// jsString quotes a Go string as a JS string literal.
func jsString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
