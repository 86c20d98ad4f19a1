// Package threads defines the records produced by scraping a Threads
// profile and the extractors that build them from DOM fragments.
package threads

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"
)

// FlexCount is a count that is either a number or a sentinel string
// such as "Login required" when the value could not be collected.
type FlexCount struct {
	N        int
	Sentinel string
}

// Count returns a numeric FlexCount.
func Count(n int) FlexCount {
	return FlexCount{N: n}
}

// Sentinel returns a FlexCount carrying a sentinel string.
func Sentinel(s string) FlexCount {
	return FlexCount{Sentinel: s}
}

func (f FlexCount) String() string {
	if f.Sentinel != "" {
		return f.Sentinel
	}
	return strconv.Itoa(f.N)
}

func (f FlexCount) MarshalJSON() ([]byte, error) {
	if f.Sentinel != "" {
		return json.Marshal(f.Sentinel)
	}
	return json.Marshal(f.N)
}

func (f *FlexCount) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexCount{N: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = FlexCount{Sentinel: s}
	return nil
}

// PostRecord is one post or repost. Metadata is the raw engagement tail
// ("Like 5 Reply 2 Repost 1"), left unparsed at this layer.
type PostRecord struct {
	Text       string   `json:"text"`
	DatePosted string   `json:"date_posted"`
	Metadata   string   `json:"metadata"`
	MediaURLs  []string `json:"media_urls,omitempty"`
}

// SubPost is one side of a reply thread.
type SubPost struct {
	Text       string `json:"text"`
	DatePosted string `json:"date_posted"`
	Author     string `json:"author,omitempty"`
	Metadata   string `json:"metadata"`
}

// ReplyRecord pairs an original post with the profile's reply to it.
// Both halves come from the same DOM fragment or not at all.
type ReplyRecord struct {
	OriginalPost SubPost `json:"original_post"`
	Reply        SubPost `json:"reply"`
}

// FollowerRecord is one entry from the followers or following modal.
// IsMutual is filled in later by processing, never at scrape time.
type FollowerRecord struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	IsMutual *bool  `json:"is_mutual,omitempty"`
}

// ProfileRecord is everything collected for one identity.
type ProfileRecord struct {
	Username       string                      `json:"username"`
	Name           string                      `json:"name"`
	ProfilePicture string                      `json:"profile_picture"`
	Bio            string                      `json:"bio"`
	ExternalLinks  []string                    `json:"external_links"`
	Instagram      string                      `json:"instagram"`
	FollowersCount FlexCount                   `json:"followers_count"`
	Followers      *Collection[FollowerRecord] `json:"followers"`
	FollowingCount FlexCount                   `json:"following_count"`
	Following      *Collection[FollowerRecord] `json:"following"`
	PostsCount     FlexCount                   `json:"posts_count"`
	Posts          *Collection[PostRecord]     `json:"posts"`
	RepliesCount   FlexCount                   `json:"replies_count"`
	Replies        *Collection[ReplyRecord]    `json:"replies"`
	RepostsCount   FlexCount                   `json:"reposts_count"`
	Reposts        *Collection[PostRecord]     `json:"reposts"`
	IsPrivate      bool                        `json:"is_private"`
	MediaSummary   *DownloadStatsSnapshot      `json:"media_summary,omitempty"`
	FirstArchived  string                      `json:"first_archived,omitempty"`
	LastUpdated    string                      `json:"last_updated,omitempty"`

	// Error marks a stand-in record for an identity whose fetch failed.
	// When set, the JSON shape collapses to {"error": "..."}.
	Error string `json:"-"`
}

// NewProfileRecord returns a record with all collections initialized.
func NewProfileRecord(username string) *ProfileRecord {
	return &ProfileRecord{
		Username:  username,
		Followers: NewCollection[FollowerRecord](),
		Following: NewCollection[FollowerRecord](),
		Posts:     NewCollection[PostRecord](),
		Replies:   NewCollection[ReplyRecord](),
		Reposts:   NewCollection[PostRecord](),
	}
}

// ErrorRecord returns the stand-in record for a failed identity fetch.
func ErrorRecord(username string, err error) *ProfileRecord {
	return &ProfileRecord{Username: username, Error: err.Error()}
}

func (p *ProfileRecord) MarshalJSON() ([]byte, error) {
	if p.Error != "" {
		return json.Marshal(map[string]string{"error": p.Error})
	}
	type alias ProfileRecord
	return json.Marshal((*alias)(p))
}

func (p *ProfileRecord) UnmarshalJSON(data []byte) error {
	var standIn struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &standIn); err == nil && standIn.Error != "" {
		p.Error = standIn.Error
		return nil
	}
	type alias ProfileRecord
	return json.Unmarshal(data, (*alias)(p))
}

// ProfileSet maps username to its record, mirroring the output
// envelope {username: {...}}.
type ProfileSet map[string]*ProfileRecord

// MediaType classifies a discovered asset.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// MediaAsset tracks one discovered media URL through its lifecycle:
// created on discovery, mutated once on the download attempt.
type MediaAsset struct {
	URL           string    `json:"url"`
	Type          MediaType `json:"type"`
	ContentType   string    `json:"content_type"`
	PostID        string    `json:"post_id"`
	Context       string    `json:"context"`
	DiscoveredAt  time.Time `json:"discovered_at"`
	Downloaded    bool      `json:"downloaded"`
	FilePath      string    `json:"file_path,omitempty"`
	FileSize      int64     `json:"file_size,omitempty"`
	DownloadError string    `json:"download_error,omitempty"`
}

// DownloadStats counts download outcomes. Counters are atomic because
// concurrent download workers increment them.
type DownloadStats struct {
	totalDiscovered  atomic.Int64
	totalDownloaded  atomic.Int64
	totalFailed      atomic.Int64
	totalSkipped     atomic.Int64
	bytesDownloaded  atomic.Int64
}

func (s *DownloadStats) AddDiscovered()        { s.totalDiscovered.Add(1) }
func (s *DownloadStats) AddDownloaded()        { s.totalDownloaded.Add(1) }
func (s *DownloadStats) AddFailed()            { s.totalFailed.Add(1) }
func (s *DownloadStats) AddSkipped()           { s.totalSkipped.Add(1) }
func (s *DownloadStats) AddBytes(n int64)      { s.bytesDownloaded.Add(n) }
func (s *DownloadStats) TotalDiscovered() int64 { return s.totalDiscovered.Load() }

// Reset zeroes all counters.
func (s *DownloadStats) Reset() {
	s.totalDiscovered.Store(0)
	s.totalDownloaded.Store(0)
	s.totalFailed.Store(0)
	s.totalSkipped.Store(0)
	s.bytesDownloaded.Store(0)
}

// Snapshot returns a plain, serializable copy of the counters.
func (s *DownloadStats) Snapshot() DownloadStatsSnapshot {
	return DownloadStatsSnapshot{
		TotalDiscovered: s.totalDiscovered.Load(),
		TotalDownloaded: s.totalDownloaded.Load(),
		TotalFailed:     s.totalFailed.Load(),
		TotalSkipped:    s.totalSkipped.Load(),
		BytesDownloaded: s.bytesDownloaded.Load(),
	}
}

// DownloadStatsSnapshot is a point-in-time copy of DownloadStats.
type DownloadStatsSnapshot struct {
	TotalDiscovered int64 `json:"total_discovered"`
	TotalDownloaded int64 `json:"total_downloaded"`
	TotalFailed     int64 `json:"total_failed"`
	TotalSkipped    int64 `json:"total_skipped"`
	BytesDownloaded int64 `json:"bytes_downloaded"`
}
