package database

import (
	"time"
)

// Feed is the database record backing a feed definition. The definition
// itself (URL, type, frequency) is owned by the feeds directory; the
// timestamp columns are written exclusively by the pipeline.
type Feed struct {
	ID               string // Database UUID
	Name             string // Feed identifier derived from definition filename
	Description      string
	URL              string // Homepage URL
	FeedURL          string // RSS/Atom feed URL
	LastFetchedAt    *time.Time
	NextFetchAt      *time.Time
	LastDigestSentAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Item is one ingested feed entry. (feed_id, guid) is unique; a repeated
// fetch of the same entry is a no-op.
type Item struct {
	ID               string
	FeedID           string
	GUID             string
	Title            string
	Content          string
	Excerpt          string
	Link             string
	Author           string
	PublishedAt      time.Time
	IncludedInDigest bool
	DigestID         *string // Set once when the item is consumed by a digest
	CreatedAt        time.Time
}

// Digest is one generated summary document for a feed. SentAt and Recipient
// stay NULL until the newsletter has been delivered.
type Digest struct {
	ID        string
	FeedID    string
	Title     string
	Content   string
	ItemCount int
	SentAt    *time.Time
	Recipient *string
	CreatedAt time.Time
}
