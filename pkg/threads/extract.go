package threads

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// metadataMarker separates post body text from the trailing engagement
// counts in the page's rendered text. This is a heuristic against the
// site's current rendering, not a grammar: a markup change degrades
// extraction quality silently instead of failing.
const metadataMarker = " Like "

// boilerplatePrefixes are lead-in tokens stripped from the body text.
var boilerplatePrefixes = []string{"Follow", "More"}

// CleanAndExtractMetadata splits raw fragment text into body text and
// the raw metadata tail. The split happens at the last occurrence of
// " Like "; the tail is re-prefixed with "Like ". Text with no marker
// yields an empty metadata string.
func CleanAndExtractMetadata(raw string) (body, metadata string) {
	if idx := strings.LastIndex(raw, metadataMarker); idx >= 0 {
		body = raw[:idx]
		metadata = "Like " + strings.TrimSpace(raw[idx+len(metadataMarker):])
	} else {
		body = raw
	}
	for _, prefix := range boilerplatePrefixes {
		if i := strings.Index(body, prefix); i >= 0 {
			body = body[i+len(prefix):]
		}
	}
	return strings.TrimSpace(body), strings.TrimSpace(metadata)
}

// fragmentText concatenates the visible text of a fragment with single
// spaces between text nodes.
func fragmentText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// collectMediaURLs gathers image and video sources within a fragment.
func collectMediaURLs(sel *goquery.Selection) []string {
	var urls []string
	seen := make(map[string]struct{})
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || strings.HasPrefix(u, "data:") {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	sel.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		add(img.AttrOr("src", ""))
	})
	sel.Find("video[src]").Each(func(_ int, v *goquery.Selection) {
		add(v.AttrOr("src", ""))
	})
	sel.Find("video source[src]").Each(func(_ int, src *goquery.Selection) {
		add(src.AttrOr("src", ""))
	})
	return urls
}

// ExtractPost maps one post fragment to a PostRecord. The body text
// comes from the fragment's first direct child div; the date from the
// fragment's first time element.
func ExtractPost(sel *goquery.Selection) (PostRecord, bool) {
	if sel == nil || sel.Length() == 0 {
		return PostRecord{}, false
	}
	text, metadata := CleanAndExtractMetadata(fragmentText(sel.ChildrenFiltered("div").First()))
	return PostRecord{
		Text:       text,
		DatePosted: sel.Find("time").First().AttrOr("datetime", ""),
		Metadata:   metadata,
		MediaURLs:  collectMediaURLs(sel),
	}, true
}

// ExtractRepost maps one repost fragment to a PostRecord. Reposts
// render the same way posts do.
func ExtractRepost(sel *goquery.Selection) (PostRecord, bool) {
	return ExtractPost(sel)
}

// ExtractReply maps one reply-thread fragment to a ReplyRecord. The
// fragment must contain at least two pressable containers; the first is
// the original post, the second the reply. Fewer than two discards the
// whole record rather than producing a partial one.
func ExtractReply(sel *goquery.Selection) (ReplyRecord, bool) {
	if sel == nil || sel.Length() == 0 {
		return ReplyRecord{}, false
	}
	containers := sel.Find(`div[data-pressable-container="true"]`)
	if containers.Length() < 2 {
		return ReplyRecord{}, false
	}

	original := containers.Eq(0)
	origText, origMeta := CleanAndExtractMetadata(fragmentText(original.ChildrenFiltered("div").First()))
	reply := containers.Eq(1)
	replyText, replyMeta := CleanAndExtractMetadata(fragmentText(reply.ChildrenFiltered("div").First()))

	return ReplyRecord{
		OriginalPost: SubPost{
			Text:       origText,
			DatePosted: original.Find("time").First().AttrOr("datetime", ""),
			Author:     strings.TrimSpace(original.Find("a[href]").First().Text()),
			Metadata:   origMeta,
		},
		Reply: SubPost{
			Text:       replyText,
			DatePosted: reply.Find("time").First().AttrOr("datetime", ""),
			Metadata:   replyMeta,
		},
	}, true
}

// ExtractFollower maps one follower-list fragment to a FollowerRecord.
// The username comes from the fragment's role=link anchor href; the
// display name from the first dir=auto span whose text differs from the
// username. Either missing discards the record.
func ExtractFollower(sel *goquery.Selection) (FollowerRecord, bool) {
	if sel == nil || sel.Length() == 0 {
		return FollowerRecord{}, false
	}
	link := sel.Find(`a[role="link"]`).First()
	if link.Length() == 0 {
		return FollowerRecord{}, false
	}
	username := strings.Trim(link.AttrOr("href", ""), "/@")
	if username == "" {
		return FollowerRecord{}, false
	}

	var name string
	sel.Find(`span[dir="auto"]`).EachWithBreak(func(_ int, span *goquery.Selection) bool {
		text := strings.TrimSpace(span.Text())
		if text != "" && text != username {
			name = text
			return false
		}
		return true
	})
	if name == "" {
		return FollowerRecord{}, false
	}

	return FollowerRecord{Username: username, Name: name}, true
}
