package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"feed-digest/app/feed"
)

// FetchFeedTask runs one ingestion pass for a feed: retrieve the document,
// store new items, optionally extract full content.
type FetchFeedTask struct {
	Task
	Source  *feed.Source
	fetcher *feed.Fetcher
}

func NewFetchFeedTask(source *feed.Source, fetcher *feed.Fetcher) *FetchFeedTask {
	return &FetchFeedTask{
		Task:    NewTask(TaskTypeFetchFeed, source.Name),
		Source:  source,
		fetcher: fetcher,
	}
}

func (t *FetchFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	created, err := t.fetcher.Fetch(ctx, t.Source)
	if err != nil {
		slog.Error("Task failed", "type", t.GetType(), "feed", t.FeedName, "error", err)
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"new_items", created)

	return nil
}
