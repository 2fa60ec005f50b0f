package database

import (
	"database/sql"
	"fmt"
	"time"
)

// ItemRepositoryImpl handles database operations for feed items
type ItemRepositoryImpl struct {
	db *DB
}

var _ ItemRepository = (*ItemRepositoryImpl)(nil)

func NewItemRepository(db *DB) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db}
}

// ItemExists checks whether an item with the given guid has already been
// ingested for the feed.
func (r *ItemRepositoryImpl) ItemExists(feedID, guid string) (bool, error) {
	var id string
	err := r.db.QueryRow(`
		SELECT id FROM feed_items WHERE feed_id = $1 AND guid = $2 LIMIT 1
	`, feedID, guid).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check item existence: %w", err)
	}

	return true, nil
}

// CreateItem inserts a new item with included_in_digest=false. The unique
// (feed_id, guid) constraint makes the insert a no-op when the item already
// exists; in that case an empty id and no error are returned.
func (r *ItemRepositoryImpl) CreateItem(feedID string, data ItemData) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO feed_items (feed_id, guid, title, content, excerpt, link, author, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (feed_id, guid) DO NOTHING
		RETURNING id
	`, feedID, data.GUID, data.Title, data.Content, data.Excerpt,
		data.Link, data.Author, data.PublishedAt).Scan(&id)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create item: %w", err)
	}

	return id, nil
}

// UpdateItemContent replaces an item's content in place, after full-content
// extraction. The dedup key and digestion state are untouched.
func (r *ItemRepositoryImpl) UpdateItemContent(itemID, content string) error {
	_, err := r.db.Exec(`
		UPDATE feed_items SET content = $2 WHERE id = $1
	`, itemID, content)

	if err != nil {
		return fmt.Errorf("failed to update item content: %w", err)
	}

	return nil
}

// GetUndigestedItems returns the digest candidate pool for a feed, newest
// first.
func (r *ItemRepositoryImpl) GetUndigestedItems(feedID string, limit int) ([]Item, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_id, guid, title, content, excerpt, link, author,
		       published_at, included_in_digest, digest_id, created_at
		FROM feed_items
		WHERE feed_id = $1
		  AND included_in_digest = false
		ORDER BY published_at DESC
		LIMIT $2
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get undigested items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// GetItemsByFeed returns items for a feed regardless of digestion state,
// newest first. Used for prompt previews.
func (r *ItemRepositoryImpl) GetItemsByFeed(feedID string, limit int) ([]Item, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_id, guid, title, content, excerpt, link, author,
		       published_at, included_in_digest, digest_id, created_at
		FROM feed_items
		WHERE feed_id = $1
		ORDER BY published_at DESC
		LIMIT $2
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items by feed: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// MarkItemsDigested links items to the digest that consumed them. The
// updates are applied per item, not in one transaction: an item left
// unmarked after a crash simply reappears in the next digest.
func (r *ItemRepositoryImpl) MarkItemsDigested(itemIDs []string, digestID string) error {
	for _, itemID := range itemIDs {
		_, err := r.db.Exec(`
			UPDATE feed_items
			SET included_in_digest = true, digest_id = $2
			WHERE id = $1
		`, itemID, digestID)

		if err != nil {
			return fmt.Errorf("failed to mark item %s digested: %w", itemID, err)
		}
	}

	return nil
}

func (r *ItemRepositoryImpl) GetItemCount(feedID string, undigestedOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM feed_items WHERE feed_id = $1`
	if undigestedOnly {
		query += ` AND included_in_digest = false`
	}

	var count int
	err := r.db.QueryRow(query, feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}

	return count, nil
}

// DeleteOldDigestedItems removes already-digested items published before
// the cutoff, at most batchSize per call. Returns the number deleted.
func (r *ItemRepositoryImpl) DeleteOldDigestedItems(before time.Time, batchSize int) (int, error) {
	result, err := r.db.Exec(`
		DELETE FROM feed_items
		WHERE id IN (
			SELECT id FROM feed_items
			WHERE included_in_digest = true
			  AND published_at < $1
			LIMIT $2
		)
	`, before, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old items: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted items: %w", err)
	}

	return int(deleted), nil
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID, &item.FeedID, &item.GUID, &item.Title, &item.Content,
			&item.Excerpt, &item.Link, &item.Author, &item.PublishedAt,
			&item.IncludedInDigest, &item.DigestID, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}
