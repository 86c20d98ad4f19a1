// Package processing analyzes archived profile data: mutual follower
// relationships, engagement metrics, hashtag usage and keyword
// filtering, plus merging results into a long-lived archive file.
package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jhulett18/threadsrecon/pkg/logger"
	"github.com/jhulett18/threadsrecon/pkg/threads"
)

// Monitor receives post text for keyword alerting. Metadata carries
// context for the alert message (username, date, engagement).
type Monitor interface {
	ProcessText(ctx context.Context, text string, metadata map[string]string) error
}

// Processor runs analysis passes over a set of scraped profiles.
type Processor struct {
	data     threads.ProfileSet
	analyzer Analyzer
	monitor  Monitor
	log      logger.Logger
}

// NewProcessor creates a processor over the given profiles. The
// analyzer scores post sentiment and must not be nil.
func NewProcessor(data threads.ProfileSet, analyzer Analyzer, log logger.Logger) *Processor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Processor{data: data, analyzer: analyzer, log: log}
}

// SetMonitor attaches a keyword monitor. Posts are streamed through it
// during ProcessAndArchive.
func (p *Processor) SetMonitor(m Monitor) {
	p.monitor = m
}

// Data returns the profile set, including any in-place updates.
func (p *Processor) Data() threads.ProfileSet {
	return p.data
}

// LoadProfiles reads a profile set from a JSON file. A missing file
// yields an empty set rather than an error.
func LoadProfiles(path string, log logger.Logger) (threads.ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if log != nil {
				log.WarnWithFields("Input file not found, starting with empty data", map[string]interface{}{
					"path": path,
				})
			}
			return threads.ProfileSet{}, nil
		}
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	var profiles threads.ProfileSet
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	return profiles, nil
}

// AddMutualFollowerStatus marks every follower and following entry
// whose username appears on both sides. Updates the data in place.
func (p *Processor) AddMutualFollowerStatus() {
	for _, profile := range p.data {
		if profile == nil || profile.Error != "" {
			continue
		}

		followerNames := usernameSet(profile.Followers)
		followingNames := usernameSet(profile.Following)

		markMutual(profile.Followers, followingNames)
		markMutual(profile.Following, followerNames)
	}
}

func usernameSet(c *threads.Collection[threads.FollowerRecord]) map[string]bool {
	set := make(map[string]bool)
	if c == nil {
		return set
	}
	c.Each(func(_ string, f threads.FollowerRecord) {
		if f.Username != "" {
			set[f.Username] = true
		}
	})
	return set
}

func markMutual(c *threads.Collection[threads.FollowerRecord], other map[string]bool) {
	if c == nil {
		return
	}
	for _, key := range c.Keys() {
		entry, ok := c.Get(key)
		if !ok || entry.Username == "" {
			continue
		}
		mutual := other[entry.Username]
		entry.IsMutual = &mutual
		c.Put(key, entry)
	}
}

// MutualStats summarizes the overlap between followers and following.
type MutualStats struct {
	MutualFollowers         int      `json:"mutual_followers"`
	TotalFollowers          int      `json:"total_followers"`
	TotalFollowing          int      `json:"total_following"`
	MutualPercentage        float64  `json:"mutual_percentage"`
	MutualFollowerUsernames []string `json:"mutual_follower_usernames"`
}

// MutualStats computes follower overlap statistics for one user.
func (p *Processor) MutualStats(username string) MutualStats {
	profile, ok := p.data[username]
	if !ok || profile == nil {
		return MutualStats{MutualFollowerUsernames: []string{}}
	}

	followingNames := usernameSet(profile.Following)

	stats := MutualStats{MutualFollowerUsernames: []string{}}
	if profile.Followers != nil {
		stats.TotalFollowers = profile.Followers.Len()
		profile.Followers.Each(func(_ string, f threads.FollowerRecord) {
			if f.Username != "" && followingNames[f.Username] {
				stats.MutualFollowerUsernames = append(stats.MutualFollowerUsernames, f.Username)
			}
		})
	}
	if profile.Following != nil {
		stats.TotalFollowing = profile.Following.Len()
	}

	stats.MutualFollowers = len(stats.MutualFollowerUsernames)
	if stats.TotalFollowers > 0 {
		pct := float64(stats.MutualFollowers) / float64(stats.TotalFollowers) * 100
		stats.MutualPercentage = round2(pct)
	}
	return stats
}

func round2(v float64) float64 {
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return rounded
}

// ProcessedPost is one post enriched with engagement, sentiment and
// hashtag data.
type ProcessedPost struct {
	PostID       string   `json:"post_id"`
	Username     string   `json:"username"`
	Text         string   `json:"text"`
	DatePosted   string   `json:"date_posted"`
	Likes        int      `json:"likes"`
	Replies      int      `json:"replies"`
	Reposts      int      `json:"reposts"`
	Neg          float64  `json:"neg"`
	Neu          float64  `json:"neu"`
	Pos          float64  `json:"pos"`
	Compound     float64  `json:"compound"`
	Hashtags     []string `json:"hashtags"`
	HashtagCount int      `json:"hashtag_count"`
}

// ProcessPosts enriches one user's posts with engagement counters,
// sentiment scores and hashtags.
func (p *Processor) ProcessPosts(username string, posts *threads.Collection[threads.PostRecord]) []ProcessedPost {
	if posts == nil {
		return nil
	}

	var processed []ProcessedPost
	posts.Each(func(key string, post threads.PostRecord) {
		engagement := ParseEngagement(post.Metadata)
		sentiment := p.analyzer.Score(post.Text)
		hashtags := ExtractHashtags(post.Text)

		processed = append(processed, ProcessedPost{
			PostID:       key,
			Username:     username,
			Text:         post.Text,
			DatePosted:   post.DatePosted,
			Likes:        engagement.Likes,
			Replies:      engagement.Replies,
			Reposts:      engagement.Reposts,
			Neg:          sentiment.Neg,
			Neu:          sentiment.Neu,
			Pos:          sentiment.Pos,
			Compound:     sentiment.Compound,
			Hashtags:     hashtags,
			HashtagCount: len(hashtags),
		})
	})
	return processed
}

// allPosts processes posts across every profile, or a single profile
// when username is non-empty.
func (p *Processor) allPosts(username string) []ProcessedPost {
	if username != "" {
		profile, ok := p.data[username]
		if !ok || profile == nil {
			return nil
		}
		return p.ProcessPosts(username, profile.Posts)
	}

	var usernames []string
	for name := range p.data {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)

	var all []ProcessedPost
	for _, name := range usernames {
		if profile := p.data[name]; profile != nil {
			all = append(all, p.ProcessPosts(name, profile.Posts)...)
		}
	}
	return all
}

// TagCount is one hashtag with its usage count.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// HashtagStats summarizes hashtag usage across a post set.
type HashtagStats struct {
	TotalHashtags      int        `json:"total_hashtags"`
	UniqueHashtags     int        `json:"unique_hashtags"`
	TopHashtags        []TagCount `json:"top_hashtags"`
	AvgHashtagsPerPost float64    `json:"avg_hashtags_per_post"`
}

// HashtagStats aggregates hashtag usage for one user, or for every
// user when username is empty. The top list holds at most ten tags.
func (p *Processor) HashtagStats(username string) HashtagStats {
	posts := p.allPosts(username)
	stats := HashtagStats{TopHashtags: []TagCount{}}
	if len(posts) == 0 {
		return stats
	}

	counts := make(map[string]int)
	for _, post := range posts {
		stats.TotalHashtags += len(post.Hashtags)
		for _, tag := range post.Hashtags {
			counts[tag]++
		}
	}
	stats.UniqueHashtags = len(counts)
	stats.AvgHashtagsPerPost = float64(stats.TotalHashtags) / float64(len(posts))

	for tag, count := range counts {
		stats.TopHashtags = append(stats.TopHashtags, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(stats.TopHashtags, func(i, j int) bool {
		if stats.TopHashtags[i].Count != stats.TopHashtags[j].Count {
			return stats.TopHashtags[i].Count > stats.TopHashtags[j].Count
		}
		return stats.TopHashtags[i].Tag < stats.TopHashtags[j].Tag
	})
	if len(stats.TopHashtags) > 10 {
		stats.TopHashtags = stats.TopHashtags[:10]
	}
	return stats
}

// FilterByDate keeps posts inside the inclusive date range. Empty
// bounds are open. Dates are compared as timestamps when both sides
// parse, as strings otherwise.
func FilterByDate(posts []ProcessedPost, startDate, endDate string) []ProcessedPost {
	if startDate == "" && endDate == "" {
		return posts
	}

	var filtered []ProcessedPost
	for _, post := range posts {
		if startDate != "" && dateBefore(post.DatePosted, startDate) {
			continue
		}
		if endDate != "" && dateBefore(endDate, post.DatePosted) {
			continue
		}
		filtered = append(filtered, post)
	}
	return filtered
}

func dateBefore(a, b string) bool {
	ta, errA := parseDate(a)
	tb, errB := parseDate(b)
	if errA == nil && errB == nil {
		return ta.Before(tb)
	}
	return a < b
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %s", s)
}

// FilterByKeywords keeps posts whose text contains any keyword,
// case-insensitively. An empty keyword list keeps everything.
func FilterByKeywords(posts []ProcessedPost, keywords []string) []ProcessedPost {
	if len(keywords) == 0 {
		return posts
	}

	var lowered []string
	for _, kw := range keywords {
		if kw != "" {
			lowered = append(lowered, strings.ToLower(kw))
		}
	}
	if len(lowered) == 0 {
		return posts
	}

	var filtered []ProcessedPost
	for _, post := range posts {
		text := strings.ToLower(post.Text)
		for _, kw := range lowered {
			if strings.Contains(text, kw) {
				filtered = append(filtered, post)
				break
			}
		}
	}
	return filtered
}

// ArchiveMetadata describes the state of an archive file.
type ArchiveMetadata struct {
	LastUpdated      string   `json:"last_updated"`
	FirstArchived    string   `json:"first_archived,omitempty"`
	TotalProfiles    int      `json:"total_profiles"`
	ProfileUsernames []string `json:"profile_usernames"`
}

// Archive is the long-lived merged profile store.
type Archive struct {
	Metadata ArchiveMetadata    `json:"metadata"`
	Profiles threads.ProfileSet `json:"profiles"`
}

// ArchiveProfiles merges the current profiles into the archive file.
// Existing profiles for other usernames are kept and first_archived
// survives updates.
func (p *Processor) ArchiveProfiles(path string) error {
	archive := Archive{Profiles: threads.ProfileSet{}}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &archive); err != nil {
			p.log.WarnWithFields("Existing archive is not valid JSON, starting fresh", map[string]interface{}{
				"path": path,
			})
			archive = Archive{Profiles: threads.ProfileSet{}}
		}
	}
	if archive.Profiles == nil {
		archive.Profiles = threads.ProfileSet{}
	}

	now := time.Now().Format(time.RFC3339)
	for username, profile := range p.data {
		archive.Profiles[username] = profile
	}

	var usernames []string
	for name := range archive.Profiles {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)

	archive.Metadata.LastUpdated = now
	archive.Metadata.TotalProfiles = len(archive.Profiles)
	archive.Metadata.ProfileUsernames = usernames
	if archive.Metadata.FirstArchived == "" {
		archive.Metadata.FirstArchived = now
	}

	if err := writeJSON(path, archive); err != nil {
		return fmt.Errorf("failed to archive profiles: %w", err)
	}

	p.log.InfoWithFields("Archive updated", map[string]interface{}{
		"path":     path,
		"profiles": len(archive.Profiles),
	})
	return nil
}

// ProfileStats bundles the per-user analysis results.
type ProfileStats struct {
	MutualStats
	HashtagStats HashtagStats `json:"hashtag_stats"`
}

// FiltersApplied records the filter parameters used for a run.
type FiltersApplied struct {
	Keywords  []string `json:"keywords"`
	DateRange struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"date_range"`
}

// ResultMetadata describes one processing run.
type ResultMetadata struct {
	TotalPosts     int            `json:"total_posts"`
	ProcessedDate  string         `json:"processed_date"`
	FiltersApplied FiltersApplied `json:"filters_applied"`
}

// ProcessResult is the full output of ProcessAndArchive.
type ProcessResult struct {
	Metadata     ResultMetadata          `json:"metadata"`
	ProfileStats map[string]ProfileStats `json:"profile_stats"`
	Posts        []ProcessedPost         `json:"posts"`
}

// ProcessAndArchive runs the full pipeline: per-profile stats, post
// enrichment, keyword monitoring, date and keyword filters, archive
// merge, and the result file.
func (p *Processor) ProcessAndArchive(ctx context.Context, outputFile, archiveFile string, keywords []string, startDate, endDate string) (*ProcessResult, error) {
	profileStats := make(map[string]ProfileStats)
	var allPosts []ProcessedPost

	var usernames []string
	for name := range p.data {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)

	for _, username := range usernames {
		profile := p.data[username]
		if profile == nil {
			continue
		}

		profileStats[username] = ProfileStats{
			MutualStats:  p.MutualStats(username),
			HashtagStats: p.HashtagStats(username),
		}

		posts := p.ProcessPosts(username, profile.Posts)
		allPosts = append(allPosts, posts...)

		if p.monitor != nil {
			for _, post := range posts {
				metadata := map[string]string{
					"username":    username,
					"date_posted": post.DatePosted,
					"likes":       strconv.Itoa(post.Likes),
					"replies":     strconv.Itoa(post.Replies),
				}
				if err := p.monitor.ProcessText(ctx, post.Text, metadata); err != nil {
					p.log.WarnWithFields("Keyword monitoring failed for post", map[string]interface{}{
						"username": username,
						"post_id":  post.PostID,
						"error":    err.Error(),
					})
				}
			}
		}
	}

	filtered := FilterByDate(allPosts, startDate, endDate)
	filtered = FilterByKeywords(filtered, keywords)
	if filtered == nil {
		filtered = []ProcessedPost{}
	}

	if err := p.ArchiveProfiles(archiveFile); err != nil {
		return nil, err
	}

	result := &ProcessResult{
		Metadata: ResultMetadata{
			TotalPosts:    len(filtered),
			ProcessedDate: time.Now().Format(time.RFC3339),
		},
		ProfileStats: profileStats,
		Posts:        filtered,
	}
	result.Metadata.FiltersApplied.Keywords = keywords
	result.Metadata.FiltersApplied.DateRange.Start = startDate
	result.Metadata.FiltersApplied.DateRange.End = endDate

	if err := writeJSON(outputFile, result); err != nil {
		return nil, fmt.Errorf("failed to save processed results: %w", err)
	}

	p.log.InfoWithFields("Processing complete", map[string]interface{}{
		"output": outputFile,
		"posts":  len(filtered),
	})
	return result, nil
}

// writeJSON saves indented JSON through a temp file rename.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
