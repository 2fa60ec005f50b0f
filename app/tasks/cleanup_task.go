package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feed-digest/app/database"
)

const cleanupBatchSize = 100

// CleanupTask removes old items that have already been folded into a
// digest. Deletes run in bounded batches to keep each statement short.
type CleanupTask struct {
	Task
	itemRepo         database.ItemRepository
	cleanupAfterDays int
}

func NewCleanupTask(itemRepo database.ItemRepository, cleanupAfterDays int) *CleanupTask {
	return &CleanupTask{
		Task:             NewTask(TaskTypeCleanup, ""),
		itemRepo:         itemRepo,
		cleanupAfterDays: cleanupAfterDays,
	}
}

func (t *CleanupTask) Execute(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -t.cleanupAfterDays)

	deleted := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := t.itemRepo.DeleteOldDigestedItems(cutoff, cleanupBatchSize)
		if err != nil {
			slog.Error("Task failed", "type", t.GetType(), "error", err)
			return fmt.Errorf("failed to delete old items: %w", err)
		}

		deleted += n
		if n < cleanupBatchSize {
			break
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"deleted", deleted,
		"cutoff", cutoff.Format(time.RFC3339))

	return nil
}
