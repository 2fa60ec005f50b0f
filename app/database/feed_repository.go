package database

import (
	"database/sql"
	"fmt"
	"time"
)

// FeedRepositoryImpl handles database operations for feeds
type FeedRepositoryImpl struct {
	db *DB
}

var _ FeedRepository = (*FeedRepositoryImpl)(nil)

func NewFeedRepository(db *DB) *FeedRepositoryImpl {
	return &FeedRepositoryImpl{db: db}
}

// UpsertFeed registers a feed definition in the database, keyed by name.
// The pipeline-owned timestamp columns are preserved on update.
func (r *FeedRepositoryImpl) UpsertFeed(name, description, url, feedURL string) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO feeds (name, description, url, feed_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			url = EXCLUDED.url,
			feed_url = EXCLUDED.feed_url,
			updated_at = NOW()
		RETURNING id
	`, name, description, url, feedURL).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to upsert feed: %w", err)
	}

	return id, nil
}

func (r *FeedRepositoryImpl) GetFeed(name string) (*Feed, error) {
	return r.getFeed(`WHERE name = $1`, name)
}

func (r *FeedRepositoryImpl) GetFeedByID(id string) (*Feed, error) {
	return r.getFeed(`WHERE id = $1`, id)
}

func (r *FeedRepositoryImpl) getFeed(where string, arg interface{}) (*Feed, error) {
	var feed Feed
	err := r.db.QueryRow(`
		SELECT id, name, COALESCE(description, ''), COALESCE(url, ''), COALESCE(feed_url, ''),
		       last_fetched_at, next_fetch_at, last_digest_sent_at, created_at, updated_at
		FROM feeds
		`+where, arg).Scan(
		&feed.ID, &feed.Name, &feed.Description, &feed.URL, &feed.FeedURL,
		&feed.LastFetchedAt, &feed.NextFetchAt, &feed.LastDigestSentAt,
		&feed.CreatedAt, &feed.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return &feed, nil
}

func (r *FeedRepositoryImpl) GetAllFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT id, name, COALESCE(description, ''), COALESCE(url, ''), COALESCE(feed_url, ''),
		       last_fetched_at, next_fetch_at, last_digest_sent_at, created_at, updated_at
		FROM feeds
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var feed Feed
		err := rows.Scan(
			&feed.ID, &feed.Name, &feed.Description, &feed.URL, &feed.FeedURL,
			&feed.LastFetchedAt, &feed.NextFetchAt, &feed.LastDigestSentAt,
			&feed.CreatedAt, &feed.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *FeedRepositoryImpl) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// UpdateNextFetch records the scheduled fetch time for a feed.
func (r *FeedRepositoryImpl) UpdateNextFetch(feedID string, nextFetch time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET next_fetch_at = $2, updated_at = NOW()
		WHERE id = $1
	`, feedID, nextFetch)

	if err != nil {
		return fmt.Errorf("failed to update next fetch time: %w", err)
	}

	return nil
}

// UpdateLastFetched marks a completed fetch and clears the pending schedule,
// so the next daily planning pass assigns a fresh slot.
func (r *FeedRepositoryImpl) UpdateLastFetched(feedID string) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_fetched_at = NOW(), next_fetch_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, feedID)

	if err != nil {
		return fmt.Errorf("failed to update last fetched time: %w", err)
	}

	return nil
}

func (r *FeedRepositoryImpl) UpdateLastDigestSent(feedID string) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_digest_sent_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, feedID)

	if err != nil {
		return fmt.Errorf("failed to update last digest sent time: %w", err)
	}

	return nil
}
