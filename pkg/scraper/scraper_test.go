package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhulett18/threadsrecon/pkg/config"
	"github.com/jhulett18/threadsrecon/pkg/errors"
	"github.com/jhulett18/threadsrecon/pkg/logger"
)

const profilePage = `<html><head>
	<title>J. Doe (@jdoe) on Threads</title>
	<meta property="og:image" content="https://scontent.cdninstagram.com/avatar.jpg">
	<link rel="me" href="https://example.org/jdoe">
</head><body>
	<h1 dir="auto">J. Doe</h1>
	<span dir="auto">jdoe</span>
	<span dir="auto">threads.net</span>
	<span dir="auto">42 followers</span>
	<span dir="auto">Security researcher and OSINT enthusiast</span>
	<a href="https://l.threads.net/?u=https%3A%2F%2Fwww.instagram.com%2Fjdoe&e=AT0">instagram</a>
	<div class="x78zum5 xdt5ytf">
		<div>First post Like 5 Reply 2</div>
		<time datetime="2024-11-02T10:00:00.000Z"></time>
		<img src="https://scontent.cdninstagram.com/p/first.jpg">
	</div>
	<div class="x78zum5 xdt5ytf">
		<div>Second post Like 1</div>
		<time datetime="2024-11-03T10:00:00.000Z"></time>
	</div>
</body></html>`

const repliesPage = `<html><body>
	<div class="x78zum5 xdt5ytf">
		<div data-pressable-container="true">
			<div>Original thought Like 9</div>
			<time datetime="2024-10-30T08:00:00.000Z"></time>
			<a href="/@someone">someone</a>
		</div>
		<div data-pressable-container="true">
			<div>My reply Like 1</div>
			<time datetime="2024-10-30T09:00:00.000Z"></time>
		</div>
	</div>
</body></html>`

type recordingSink struct {
	urls []string
}

func (r *recordingSink) AddMediaURL(url, _, _, _ string) bool {
	r.urls = append(r.urls, url)
	return true
}

func testScraper() *Scraper {
	cfg := config.DefaultConfig()
	cfg.Scraper.Delays.MinWait = time.Millisecond
	cfg.Scraper.Delays.MaxWait = time.Millisecond
	cfg.Scraper.Retries.InitialDelay = time.Millisecond
	sc := New(cfg, logger.GetLogger())
	sc.settle = 0
	return sc
}

func TestFetchProfileAnonymous(t *testing.T) {
	f := newFakeSession()
	f.pages["https://www.threads.net/@jdoe"] = profilePage
	f.pages["https://www.threads.net/@jdoe/replies"] = repliesPage
	f.pages["https://www.threads.net/@jdoe/reposts"] = "<html><body></body></html>"

	sc := testScraper()
	sink := &recordingSink{}
	sc.SetMediaSink(sink)

	record, err := sc.fetchProfile(context.Background(), f, false, "jdoe")
	require.NoError(t, err)

	assert.Equal(t, "jdoe", record.Username)
	assert.Equal(t, "J. Doe", record.Name)
	assert.Equal(t, "https://scontent.cdninstagram.com/avatar.jpg", record.ProfilePicture)
	assert.Equal(t, "Security researcher and OSINT enthusiast", record.Bio)
	assert.Equal(t, []string{"https://example.org/jdoe"}, record.ExternalLinks)
	assert.Equal(t, "https://www.instagram.com/jdoe", record.Instagram)
	assert.False(t, record.IsPrivate)

	// Anonymous mode: sentinels, empty maps, no modal flow.
	assert.Equal(t, sentinelLoginRequired, record.FollowersCount.Sentinel)
	assert.Equal(t, sentinelLoginRequired, record.FollowingCount.Sentinel)
	assert.Equal(t, 0, record.Followers.Len())
	assert.Equal(t, 0, record.Following.Len())
	assert.False(t, f.ranScript("followers"))

	assert.Equal(t, 2, record.PostsCount.N)
	post, ok := record.Posts.Get("post 1")
	require.True(t, ok)
	assert.Equal(t, "First post", post.Text)
	assert.Equal(t, "Like 5 Reply 2", post.Metadata)

	assert.Equal(t, 1, record.RepliesCount.N)
	reply, ok := record.Replies.Get("reply 1")
	require.True(t, ok)
	assert.Equal(t, "Original thought", reply.OriginalPost.Text)
	assert.Equal(t, "someone", reply.OriginalPost.Author)
	assert.Equal(t, "My reply", reply.Reply.Text)

	assert.Equal(t, 0, record.RepostsCount.N)

	// Avatar and post image were routed to the media sink.
	assert.Contains(t, sink.urls, "https://scontent.cdninstagram.com/avatar.jpg")
	assert.Contains(t, sink.urls, "https://scontent.cdninstagram.com/p/first.jpg")
}

func TestFetchProfileFollowersModalFailure(t *testing.T) {
	f := newFakeSession()
	f.pages["https://www.threads.net/@jdoe"] = profilePage
	f.pages["https://www.threads.net/@jdoe/replies"] = "<html><body></body></html>"
	f.pages["https://www.threads.net/@jdoe/reposts"] = "<html><body></body></html>"
	f.scriptFalse = []string{" followers"}

	sc := testScraper()
	record, err := sc.fetchProfile(context.Background(), f, true, "jdoe")
	require.NoError(t, err)

	// Both counts degrade to sentinels; neither serializes as a bare 0.
	assert.Equal(t, sentinelFollowersNotFound, record.FollowersCount.Sentinel)
	assert.Equal(t, sentinelFollowingNotFound, record.FollowingCount.Sentinel)
	assert.Equal(t, 0, record.Followers.Len())
	assert.Equal(t, 0, record.Following.Len())
}

func TestFetchProfilePrivate(t *testing.T) {
	f := newFakeSession()
	f.pages["https://www.threads.net/@locked"] = `<html><head>
		<title>Locked (@locked) on Threads</title>
	</head><body>
		<h1 dir="auto">Locked</h1>
		<span dir="auto">This profile is private</span>
	</body></html>`
	f.pages["https://www.threads.net/@locked/replies"] = "<html><body></body></html>"
	f.pages["https://www.threads.net/@locked/reposts"] = "<html><body></body></html>"

	sc := testScraper()
	record, err := sc.fetchProfile(context.Background(), f, false, "locked")
	require.NoError(t, err)
	assert.True(t, record.IsPrivate)
	assert.Equal(t, 0, record.PostsCount.N)
}

func TestFetchProfileNotFound(t *testing.T) {
	f := newFakeSession()
	f.titles["https://www.threads.net/@ghost"] = "Page not found • Threads"
	f.pages["https://www.threads.net/@ghost"] = "<html><body></body></html>"

	sc := testScraper()
	_, err := sc.fetchProfile(context.Background(), f, false, "ghost")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNotFound, errors.TypeOf(err))
}

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"https://l.threads.net/?u=https%3A%2F%2Fwww.instagram.com%2Fjdoe&e=AT0", "https://www.instagram.com/jdoe"},
		{"https://www.instagram.com/jdoe", "https://www.instagram.com/jdoe"},
		{"https://l.threads.net/?u=", "https://l.threads.net/?u="},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unwrapRedirect(tt.href))
	}
}
