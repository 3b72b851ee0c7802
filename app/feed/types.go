package feed

import (
	"time"
)

// Entry is one parsed feed entry. Optional fields are empty when the feed
// does not carry them; use the image sources in image.go to probe them.
type Entry struct {
	ID        string
	Title     string
	Link      string
	Published time.Time

	MediaContentURL   string // media:content url
	MediaThumbnailURL string // media:thumbnail url
	ContentHTML       string // content:encoded / atom content
	SummaryHTML       string // description / atom summary
}

// Item is the persisted view of an entry.
type Item struct {
	ID        string    `json:"post_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Published time.Time `json:"published"`
	ImageURL  string    `json:"image_url,omitempty"`
	Sold      bool      `json:"sold"`
}

// Snapshot is the frozen copy of the latest item kept in RunMetadata.
type Snapshot struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	ImageURL  string    `json:"image_url,omitempty"`
	Published time.Time `json:"published"`
	Sold      bool      `json:"sold"`
}

type RunMetadata struct {
	LastRunTime  time.Time `json:"last_run_time"`
	LastSeenPost Snapshot  `json:"last_seen_post"`
}

func (i Item) Snapshot() Snapshot {
	return Snapshot{
		Title:     i.Title,
		URL:       i.URL,
		ImageURL:  i.ImageURL,
		Published: i.Published,
		Sold:      i.Sold,
	}
}
