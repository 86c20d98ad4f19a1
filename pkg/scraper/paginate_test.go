package scraper

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhulett18/threadsrecon/pkg/threads"
)

// scriptedTarget plays back a fixed sequence of element counts, one per
// scroll. The feed is cumulative: count n renders fragments 1..n. Once
// the sequence is exhausted the last count repeats.
type scriptedTarget struct {
	counts  []int
	scrolls int
	render  func(i int) string
}

func (t *scriptedTarget) ScrollToBottom(context.Context) error {
	t.scrolls++
	return nil
}

func (t *scriptedTarget) Fragments(context.Context) (*goquery.Selection, error) {
	idx := t.scrolls - 1
	if idx >= len(t.counts) {
		idx = len(t.counts) - 1
	}
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 1; i <= t.counts[idx]; i++ {
		b.WriteString(t.render(i))
	}
	b.WriteString("</body></html>")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	if err != nil {
		return nil, err
	}
	return doc.Find(postFragmentSelector), nil
}

func renderPost(i int) string {
	return fmt.Sprintf(`<div class="x78zum5 xdt5ytf">
		<div>Post body %d Like %d</div>
		<time datetime="2024-11-0%dT00:00:00.000Z"></time>
	</div>`, i, i, i%9+1)
}

func TestCollectFixedFeed(t *testing.T) {
	target := &scriptedTarget{counts: []int{2, 5, 7, 7, 7}, render: renderPost}

	posts, err := Collect(context.Background(), target, threads.ExtractPost, PaginateOptions{KeyPrefix: "post"})
	require.NoError(t, err)

	require.Equal(t, 7, posts.Len())
	want := make([]string, 7)
	for i := range want {
		want[i] = fmt.Sprintf("post %d", i+1)
	}
	assert.Equal(t, want, posts.Keys())

	// Discovery order matches feed order.
	for i := 1; i <= 7; i++ {
		post, ok := posts.Get(fmt.Sprintf("post %d", i))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("Post body %d", i), post.Text)
		assert.Equal(t, fmt.Sprintf("Like %d", i), post.Metadata)
	}
}

func TestCollectReArmsStabilityCounter(t *testing.T) {
	// The 5,5,5 plateau is followed by growth, so the loop must not
	// stop there; only the 8,8,8,8 run converges.
	target := &scriptedTarget{counts: []int{3, 5, 5, 5, 8, 8, 8, 8}, render: renderPost}

	posts, err := Collect(context.Background(), target, threads.ExtractPost, PaginateOptions{KeyPrefix: "post", MaxSameCount: 3})
	require.NoError(t, err)

	assert.Equal(t, 8, posts.Len())
	assert.Equal(t, 8, target.scrolls)
}

func TestCollectEmptyFeedStillConverges(t *testing.T) {
	target := &scriptedTarget{counts: []int{0}, render: renderPost}

	posts, err := Collect(context.Background(), target, threads.ExtractPost, PaginateOptions{KeyPrefix: "post"})
	require.NoError(t, err)

	assert.Equal(t, 0, posts.Len())
	assert.Equal(t, 3, target.scrolls)
}

func TestCollectExtractorMissesDoNotAdvanceKeys(t *testing.T) {
	// Follower extraction discards fragments without a role=link
	// anchor; keys must stay sequential over the survivors.
	target := &followerTarget{counts: []int{4, 4, 4}}

	followers, err := Collect(context.Background(), target, threads.ExtractFollower, PaginateOptions{KeyPrefix: "follower"})
	require.NoError(t, err)

	assert.Equal(t, []string{"follower 1", "follower 2"}, followers.Keys())
}

type followerTarget struct {
	counts  []int
	scrolls int
}

func (t *followerTarget) ScrollToBottom(context.Context) error {
	t.scrolls++
	return nil
}

func (t *followerTarget) Fragments(context.Context) (*goquery.Selection, error) {
	idx := t.scrolls - 1
	if idx >= len(t.counts) {
		idx = len(t.counts) - 1
	}
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 1; i <= t.counts[idx]; i++ {
		if i > 2 {
			// Malformed fragment: no link element.
			b.WriteString(`<div class="x78zum5 xdt5ytf x5kalc8 xl56j7k xeuugli x1sxyh0"><span dir="auto">broken</span></div>`)
			continue
		}
		b.WriteString(fmt.Sprintf(`<div class="x78zum5 xdt5ytf x5kalc8 xl56j7k xeuugli x1sxyh0">
			<a role="link" href="/@user%d"><span dir="auto">user%d</span></a>
			<span dir="auto">User %d</span>
		</div>`, i, i, i))
	}
	b.WriteString("</body></html>")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	if err != nil {
		return nil, err
	}
	return doc.Find(followerFragmentSelector), nil
}

func TestCollectScrollFailureKeepsCollected(t *testing.T) {
	target := &failingScrollTarget{failAfter: 2, inner: &scriptedTarget{counts: []int{2, 2}, render: renderPost}}

	posts, err := Collect(context.Background(), target, threads.ExtractPost, PaginateOptions{KeyPrefix: "post"})
	require.NoError(t, err)

	assert.Equal(t, 2, posts.Len())
}

type failingScrollTarget struct {
	failAfter int
	calls     int
	inner     *scriptedTarget
}

func (t *failingScrollTarget) ScrollToBottom(ctx context.Context) error {
	t.calls++
	if t.calls > t.failAfter {
		return fmt.Errorf("dialog vanished")
	}
	return t.inner.ScrollToBottom(ctx)
}

func (t *failingScrollTarget) Fragments(ctx context.Context) (*goquery.Selection, error) {
	return t.inner.Fragments(ctx)
}

func TestCollectContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := &scriptedTarget{counts: []int{5}, render: renderPost}
	_, err := Collect(ctx, target, threads.ExtractPost, PaginateOptions{KeyPrefix: "post"})
	assert.ErrorIs(t, err, context.Canceled)
}
