package threads

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fragment(t *testing.T, htmlStr string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	require.NoError(t, err)
	return doc.Find("body").Children().First()
}

func TestCleanAndExtractMetadata(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantBody string
		wantMeta string
	}{
		{
			name:     "body with engagement tail",
			input:    "Check this out Like 5 Reply 2",
			wantBody: "Check this out",
			wantMeta: "Like 5 Reply 2",
		},
		{
			name:     "no metadata marker",
			input:    "Just a plain post",
			wantBody: "Just a plain post",
			wantMeta: "",
		},
		{
			name:     "empty input",
			input:    "",
			wantBody: "",
			wantMeta: "",
		},
		{
			name:     "follow prefix stripped",
			input:    "someuser Follow Hello world Like 3 Reply 1",
			wantBody: "Hello world",
			wantMeta: "Like 3 Reply 1",
		},
		{
			name:     "more prefix stripped",
			input:    "More Interesting thoughts Like 12",
			wantBody: "Interesting thoughts",
			wantMeta: "Like 12",
		},
		{
			name:     "splits at last marker occurrence",
			input:    "I Like trains Like 7 Reply 2",
			wantBody: "I Like trains",
			wantMeta: "Like 7 Reply 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, meta := CleanAndExtractMetadata(tt.input)
			assert.Equal(t, tt.wantBody, body)
			assert.Equal(t, tt.wantMeta, meta)
		})
	}
}

func TestExtractPost(t *testing.T) {
	sel := fragment(t, `<div class="x78zum5 xdt5ytf">
		<div><span>Hello from the feed</span><span>Like</span> <span>5</span> <span>Reply</span> <span>2</span></div>
		<time datetime="2024-11-02T10:00:00.000Z">Nov 2</time>
		<img src="https://scontent.cdninstagram.com/v/photo.jpg">
	</div>`)

	post, ok := ExtractPost(sel)
	require.True(t, ok)
	assert.Equal(t, "Hello from the feed", post.Text)
	assert.Equal(t, "Like 5 Reply 2", post.Metadata)
	assert.Equal(t, "2024-11-02T10:00:00.000Z", post.DatePosted)
	assert.Equal(t, []string{"https://scontent.cdninstagram.com/v/photo.jpg"}, post.MediaURLs)
}

func TestExtractPostMissingFields(t *testing.T) {
	post, ok := ExtractPost(fragment(t, `<div class="x78zum5 xdt5ytf"></div>`))
	require.True(t, ok)
	assert.Empty(t, post.Text)
	assert.Empty(t, post.DatePosted)
	assert.Empty(t, post.Metadata)
	assert.Empty(t, post.MediaURLs)
}

func TestExtractReply(t *testing.T) {
	sel := fragment(t, `<div class="x78zum5 xdt5ytf">
		<div data-pressable-container="true">
			<div>Original question here <span>Like</span> 10</div>
			<time datetime="2024-11-01T09:00:00.000Z">Nov 1</time>
			<a href="/@original_author">original_author</a>
		</div>
		<div data-pressable-container="true">
			<div>My answer to that <span>Like</span> 2</div>
			<time datetime="2024-11-01T10:30:00.000Z">Nov 1</time>
		</div>
	</div>`)

	reply, ok := ExtractReply(sel)
	require.True(t, ok)
	assert.Equal(t, "Original question here", reply.OriginalPost.Text)
	assert.Equal(t, "Like 10", reply.OriginalPost.Metadata)
	assert.Equal(t, "original_author", reply.OriginalPost.Author)
	assert.Equal(t, "2024-11-01T09:00:00.000Z", reply.OriginalPost.DatePosted)
	assert.Equal(t, "My answer to that", reply.Reply.Text)
	assert.Equal(t, "Like 2", reply.Reply.Metadata)
	assert.Equal(t, "2024-11-01T10:30:00.000Z", reply.Reply.DatePosted)
}

func TestExtractReplyAllOrNothing(t *testing.T) {
	// One pressable container is not a reply thread.
	sel := fragment(t, `<div class="x78zum5 xdt5ytf">
		<div data-pressable-container="true"><div>Lonely post</div></div>
	</div>`)
	_, ok := ExtractReply(sel)
	assert.False(t, ok)

	_, ok = ExtractReply(fragment(t, `<div></div>`))
	assert.False(t, ok)
}

func TestExtractFollower(t *testing.T) {
	sel := fragment(t, `<div class="x78zum5 xdt5ytf x5kalc8">
		<a role="link" href="/@alice_w"><span dir="auto">alice_w</span></a>
		<span dir="auto">Alice Walker</span>
	</div>`)

	follower, ok := ExtractFollower(sel)
	require.True(t, ok)
	assert.Equal(t, "alice_w", follower.Username)
	assert.Equal(t, "Alice Walker", follower.Name)
	assert.Nil(t, follower.IsMutual)
}

func TestExtractFollowerMissingPieces(t *testing.T) {
	// No role=link anchor.
	_, ok := ExtractFollower(fragment(t, `<div><span dir="auto">Bob</span></div>`))
	assert.False(t, ok)

	// No display name distinct from the username.
	_, ok = ExtractFollower(fragment(t, `<div>
		<a role="link" href="/@bob"><span dir="auto">bob</span></a>
	</div>`))
	assert.False(t, ok)
}
