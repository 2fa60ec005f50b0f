package database

import (
	"time"
)

// ItemData carries the normalized fields of a new feed entry into the store.
type ItemData struct {
	GUID        string
	Title       string
	Content     string
	Excerpt     string
	Link        string
	Author      string
	PublishedAt time.Time
}

type FeedRepository interface {
	UpsertFeed(name, description, url, feedURL string) (string, error)
	GetFeed(name string) (*Feed, error)
	GetFeedByID(id string) (*Feed, error)
	GetAllFeeds() ([]Feed, error)
	GetFeedCount() (int, error)

	UpdateNextFetch(feedID string, nextFetch time.Time) error
	UpdateLastFetched(feedID string) error
	UpdateLastDigestSent(feedID string) error
}

type ItemRepository interface {
	ItemExists(feedID, guid string) (bool, error)
	CreateItem(feedID string, data ItemData) (string, error)
	UpdateItemContent(itemID, content string) error

	GetUndigestedItems(feedID string, limit int) ([]Item, error)
	GetItemsByFeed(feedID string, limit int) ([]Item, error)
	MarkItemsDigested(itemIDs []string, digestID string) error
	GetItemCount(feedID string, undigestedOnly bool) (int, error)

	DeleteOldDigestedItems(before time.Time, batchSize int) (int, error)
}

type DigestRepository interface {
	CreateDigest(feedID, title, content string, itemCount int) (string, error)
	GetDigest(id string) (*Digest, error)
	GetDigestsByFeed(feedID string, limit int) ([]Digest, error)
	GetAllDigests(limit int) ([]Digest, error)
	MarkDigestSent(id, recipient string) error
	DeleteDigest(id string) error
	GetDigestCount() (int, error)
}
