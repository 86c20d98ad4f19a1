package processing

import (
	"regexp"
	"strconv"
	"strings"
)

// Engagement holds the counters parsed from a post's metadata tail.
type Engagement struct {
	Likes   int `json:"likes"`
	Replies int `json:"replies"`
	Reposts int `json:"reposts"`
}

// ParseEngagement parses a metadata string like
// "Like 5 Reply 2 Repost 1 Share" into counters. Unknown or
// non-numeric segments are ignored.
func ParseEngagement(metadata string) Engagement {
	var e Engagement
	if metadata == "" {
		return e
	}

	parts := strings.Fields(strings.ToLower(strings.ReplaceAll(metadata, " Share", "")))
	for i, part := range parts {
		if i+1 >= len(parts) {
			break
		}
		n, err := strconv.Atoi(parts[i+1])
		if err != nil {
			continue
		}
		switch part {
		case "like", "likes":
			e.Likes = n
		case "reply", "replies":
			e.Replies = n
		case "repost", "reposts":
			e.Reposts = n
		}
	}
	return e
}

var hashtagPattern = regexp.MustCompile(`#(\w+)`)

// ExtractHashtags returns the hashtags in text without the # symbol.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	var tags []string
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}
