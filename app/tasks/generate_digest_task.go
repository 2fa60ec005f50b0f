package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"feed-digest/app/ai"
	"feed-digest/app/database"
	"feed-digest/app/email"
	"feed-digest/app/feed"
)

// GenerateDigestTask runs the full digest pipeline for one feed: generate
// and persist a digest, deliver it by email, and record the send. The
// feed's last-digest timestamp moves only after a successful send, so a
// delivery failure makes the feed due again on the next daily check.
type GenerateDigestTask struct {
	Task
	Source     *feed.Source
	FeedID     string
	generator  *ai.DigestGenerator
	newsletter *email.Newsletter
	feedRepo   database.FeedRepository
	digestRepo database.DigestRepository
}

func NewGenerateDigestTask(source *feed.Source, feedID string, generator *ai.DigestGenerator,
	newsletter *email.Newsletter, feedRepo database.FeedRepository, digestRepo database.DigestRepository) *GenerateDigestTask {
	return &GenerateDigestTask{
		Task:       NewTask(TaskTypeGenerateDigest, source.Name),
		Source:     source,
		FeedID:     feedID,
		generator:  generator,
		newsletter: newsletter,
		feedRepo:   feedRepo,
		digestRepo: digestRepo,
	}
}

func (t *GenerateDigestTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	digestID, err := t.generator.Generate(ctx, t.Source, t.FeedID)
	if err != nil {
		if errors.Is(err, ai.ErrNoItems) {
			slog.Debug("No items to digest, skipping", "feed", t.FeedName)
			return nil
		}
		slog.Error("Task failed", "type", t.GetType(), "feed", t.FeedName, "error", err)
		return fmt.Errorf("failed to generate digest: %w", err)
	}

	digest, err := t.digestRepo.GetDigest(digestID)
	if err != nil {
		return fmt.Errorf("failed to load generated digest: %w", err)
	}
	if digest == nil {
		return fmt.Errorf("generated digest %s not found", digestID)
	}

	recipient, err := t.newsletter.Send(t.Source, digest)
	if err != nil {
		slog.Error("Task failed", "type", t.GetType(), "feed", t.FeedName, "digest_id", digestID, "error", err)
		return fmt.Errorf("failed to send digest email: %w", err)
	}

	if err := t.digestRepo.MarkDigestSent(digestID, recipient); err != nil {
		return fmt.Errorf("failed to mark digest sent: %w", err)
	}

	if err := t.feedRepo.UpdateLastDigestSent(t.FeedID); err != nil {
		return fmt.Errorf("failed to update last digest time: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"digest_id", digestID,
		"item_count", digest.ItemCount)

	return nil
}
