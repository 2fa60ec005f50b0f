package database

import (
	"database/sql"
	"fmt"
)

// DigestRepositoryImpl handles database operations for digests
type DigestRepositoryImpl struct {
	db *DB
}

var _ DigestRepository = (*DigestRepositoryImpl)(nil)

func NewDigestRepository(db *DB) *DigestRepositoryImpl {
	return &DigestRepositoryImpl{db: db}
}

// CreateDigest persists a generated digest. sent_at and recipient stay NULL
// until the newsletter has been delivered.
func (r *DigestRepositoryImpl) CreateDigest(feedID, title, content string, itemCount int) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO digests (feed_id, title, content, item_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, feedID, title, content, itemCount).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to create digest: %w", err)
	}

	return id, nil
}

func (r *DigestRepositoryImpl) GetDigest(id string) (*Digest, error) {
	var digest Digest
	err := r.db.QueryRow(`
		SELECT id, feed_id, title, content, item_count, sent_at, recipient, created_at
		FROM digests
		WHERE id = $1
	`, id).Scan(
		&digest.ID, &digest.FeedID, &digest.Title, &digest.Content,
		&digest.ItemCount, &digest.SentAt, &digest.Recipient, &digest.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get digest: %w", err)
	}

	return &digest, nil
}

func (r *DigestRepositoryImpl) GetDigestsByFeed(feedID string, limit int) ([]Digest, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_id, title, content, item_count, sent_at, recipient, created_at
		FROM digests
		WHERE feed_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get digests by feed: %w", err)
	}
	defer rows.Close()

	return scanDigests(rows)
}

func (r *DigestRepositoryImpl) GetAllDigests(limit int) ([]Digest, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_id, title, content, item_count, sent_at, recipient, created_at
		FROM digests
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get digests: %w", err)
	}
	defer rows.Close()

	return scanDigests(rows)
}

// MarkDigestSent records a successful delivery.
func (r *DigestRepositoryImpl) MarkDigestSent(id, recipient string) error {
	_, err := r.db.Exec(`
		UPDATE digests
		SET sent_at = NOW(), recipient = $2
		WHERE id = $1
	`, id, recipient)

	if err != nil {
		return fmt.Errorf("failed to mark digest sent: %w", err)
	}

	return nil
}

// DeleteDigest removes a digest. Items that referenced it keep their
// digested state; they are not re-digested.
func (r *DigestRepositoryImpl) DeleteDigest(id string) error {
	_, err := r.db.Exec(`DELETE FROM digests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete digest: %w", err)
	}

	return nil
}

func (r *DigestRepositoryImpl) GetDigestCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM digests").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get digest count: %w", err)
	}
	return count, nil
}

func scanDigests(rows *sql.Rows) ([]Digest, error) {
	var digests []Digest
	for rows.Next() {
		var digest Digest
		err := rows.Scan(
			&digest.ID, &digest.FeedID, &digest.Title, &digest.Content,
			&digest.ItemCount, &digest.SentAt, &digest.Recipient, &digest.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan digest row: %w", err)
		}
		digests = append(digests, digest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating digest rows: %w", err)
	}

	return digests, nil
}
