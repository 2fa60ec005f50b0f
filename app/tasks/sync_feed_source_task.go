package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"feed-digest/app/database"
	"feed-digest/app/feed"
)

// SyncFeedSourceTask mirrors one feed definition file into the database so
// fetch and digest runs have a feed record to hang items off.
type SyncFeedSourceTask struct {
	Task
	Source   *feed.Source
	feedRepo database.FeedRepository
}

func NewSyncFeedSourceTask(source *feed.Source, feedRepo database.FeedRepository) *SyncFeedSourceTask {
	return &SyncFeedSourceTask{
		Task:     NewTask(TaskTypeSyncFeedSource, source.Name),
		Source:   source,
		feedRepo: feedRepo,
	}
}

func (t *SyncFeedSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := t.feedRepo.UpsertFeed(
		t.Source.Name,
		t.Source.Description,
		t.Source.URL,
		t.Source.FeedURL)
	if err != nil {
		slog.Error("Task failed", "type", t.GetType(), "feed", t.FeedName, "error", err)
		return fmt.Errorf("failed to sync feed source to database: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"duration", t.GetDuration())

	return nil
}
