package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"feed-digest/app/ai"
	"feed-digest/app/database"
	"feed-digest/app/email"
	"feed-digest/app/feed"
	"feed-digest/app/tasks"
)

func NewHandler(sourceCache *feed.SourceCache, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository, digestRepo database.DigestRepository,
	fetcher *feed.Fetcher, generator *ai.DigestGenerator, client *ai.Client,
	newsletter *email.Newsletter, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		sourceCache: sourceCache,
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		digestRepo:  digestRepo,
		fetcher:     fetcher,
		generator:   generator,
		client:      client,
		newsletter:  newsletter,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	health["loaded_definitions"] = h.sourceCache.GetSourceCount()
	health["generation_configured"] = h.client.IsConfigured()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		stats["feeds"] = feedCount
	}
	if digestCount, err := h.digestRepo.GetDigestCount(); err == nil {
		stats["digests"] = digestCount
	}

	stats["loaded_definitions"] = h.sourceCache.GetSourceCount()
	stats["active_definitions"] = len(h.sourceCache.GetActiveSources())

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	sources := h.sourceCache.GetSources()

	feeds := make([]map[string]interface{}, 0, len(sources))

	for _, source := range sources {
		feedInfo := map[string]interface{}{
			"name":             source.Name,
			"display_name":     source.Label(),
			"url":              source.URL,
			"feed_url":         source.FeedURL,
			"active":           source.Settings.Active,
			"feed_type":        source.Settings.FeedType,
			"digest_frequency": source.Settings.DigestFrequency,
		}

		if feedRecord, err := h.feedRepo.GetFeed(source.Name); err == nil && feedRecord != nil {
			feedInfo["last_fetched_at"] = feedRecord.LastFetchedAt
			feedInfo["next_fetch_at"] = feedRecord.NextFetchAt
			feedInfo["last_digest_sent_at"] = feedRecord.LastDigestSentAt

			if itemCount, err := h.itemRepo.GetItemCount(feedRecord.ID, false); err == nil {
				feedInfo["item_count"] = itemCount
			}
			if undigested, err := h.itemRepo.GetItemCount(feedRecord.ID, true); err == nil {
				feedInfo["undigested_count"] = undigested
			}
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

// APIFetchFeed enqueues an immediate fetch for one feed, bypassing its
// scheduled slot.
func (h *Handler) APIFetchFeed(c *gin.Context) {
	source, ok := h.lookupSource(c)
	if !ok {
		return
	}

	task := tasks.NewFetchFeedTask(source, h.fetcher)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue fetch task", "feed", source.Name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Task queue is full, try again later"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Fetch scheduled",
		"feed":    source.Name,
		"task_id": task.GetID(),
	})
}

// APIGenerateDigest enqueues a full digest run (generate, send, mark) for
// one feed regardless of its due date.
func (h *Handler) APIGenerateDigest(c *gin.Context) {
	source, ok := h.lookupSource(c)
	if !ok {
		return
	}

	feedRecord, ok := h.lookupFeedRecord(c, source.Name)
	if !ok {
		return
	}

	task := tasks.NewGenerateDigestTask(source, feedRecord.ID, h.generator, h.newsletter, h.feedRepo, h.digestRepo)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue digest task", "feed", source.Name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Task queue is full, try again later"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Digest generation scheduled",
		"feed":    source.Name,
		"task_id": task.GetID(),
	})
}

// APIPreviewDigest renders a digest from recent items synchronously and
// returns the cleaned HTML without persisting or sending anything.
func (h *Handler) APIPreviewDigest(c *gin.Context) {
	source, ok := h.lookupSource(c)
	if !ok {
		return
	}

	feedRecord, ok := h.lookupFeedRecord(c, source.Name)
	if !ok {
		return
	}

	content, err := h.generator.GeneratePreview(c.Request.Context(), source, feedRecord.ID)
	if err != nil {
		switch {
		case errors.Is(err, ai.ErrNotConfigured):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Generative API key is not configured"})
		case errors.Is(err, ai.ErrNoItems):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No items available for a preview"})
		default:
			slog.Error("Preview generation failed", "feed", source.Name, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed":    source.Name,
		"content": content,
	})
}

// APIValidateFeed live-checks a feed URL: syntax, reachability and at
// least one parseable entry. Defaults to the feed's configured URL when
// the request body does not carry one.
func (h *Handler) APIValidateFeed(c *gin.Context) {
	source, ok := h.lookupSource(c)
	if !ok {
		return
	}

	var req validateRequest
	_ = c.ShouldBindJSON(&req)

	feedURL := req.URL
	if feedURL == "" {
		feedURL = source.FeedURL
	}
	if feedURL == "" {
		feedURL = source.URL
	}
	if feedURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No feed URL to validate"})
		return
	}

	if err := h.fetcher.ValidateFeedURL(c.Request.Context(), feedURL); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"feed":  source.Name,
			"url":   feedURL,
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed":  source.Name,
		"url":   feedURL,
		"valid": true,
	})
}

func (h *Handler) APIListDigests(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	var digests []database.Digest
	var err error

	if feedName := c.Query("feed"); feedName != "" {
		feedRecord, ok := h.lookupFeedRecord(c, feedName)
		if !ok {
			return
		}
		digests, err = h.digestRepo.GetDigestsByFeed(feedRecord.ID, limit)
	} else {
		digests, err = h.digestRepo.GetAllDigests(limit)
	}

	if err != nil {
		slog.Error("Database error", "operation", "list_digests", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	list := make([]map[string]interface{}, 0, len(digests))
	for _, digest := range digests {
		list = append(list, map[string]interface{}{
			"id":         digest.ID,
			"feed_id":    digest.FeedID,
			"title":      digest.Title,
			"item_count": digest.ItemCount,
			"sent_at":    digest.SentAt,
			"recipient":  digest.Recipient,
			"created_at": digest.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"digests": list,
		"total":   len(list),
	})
}

func (h *Handler) APIDeleteDigest(c *gin.Context) {
	id := c.Param("id")

	digest, err := h.digestRepo.GetDigest(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_digest", "digest_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if digest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Digest not found"})
		return
	}

	if err := h.digestRepo.DeleteDigest(id); err != nil {
		slog.Error("Database error", "operation", "delete_digest", "digest_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Digest deleted", "id": id})
}

// APIResendDigest delivers an already generated digest again and records
// the new send.
func (h *Handler) APIResendDigest(c *gin.Context) {
	id := c.Param("id")

	digest, err := h.digestRepo.GetDigest(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_digest", "digest_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if digest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Digest not found"})
		return
	}

	feedRecord, err := h.feedRepo.GetFeedByID(digest.FeedID)
	if err != nil || feedRecord == nil {
		slog.Error("Feed record missing for digest", "digest_id", id, "feed_id", digest.FeedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Owning feed not found"})
		return
	}

	source, err := h.sourceCache.GetSource(feedRecord.Name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed definition not found"})
		return
	}

	recipient, err := h.newsletter.Send(source, digest)
	if err != nil {
		h.renderEmailError(c, err)
		return
	}

	if err := h.digestRepo.MarkDigestSent(id, recipient); err != nil {
		slog.Error("Failed to mark digest sent", "digest_id", id, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Digest resent",
		"id":        id,
		"recipient": recipient,
	})
}

// APITestGeneration issues a minimal generation request to verify the API
// key and model.
func (h *Handler) APITestGeneration(c *gin.Context) {
	if err := h.client.TestConnection(c.Request.Context()); err != nil {
		switch {
		case errors.Is(err, ai.ErrNotConfigured):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Generative API key is not configured"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Generative API connection works"})
}

// APITestEmail sends a short test message over the configured SMTP
// transport.
func (h *Handler) APITestEmail(c *gin.Context) {
	var req testEmailRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.newsletter.SendTest(req.Recipient); err != nil {
		h.renderEmailError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test email sent"})
}

func (h *Handler) lookupSource(c *gin.Context) (*feed.Source, bool) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return nil, false
	}

	source, err := h.sourceCache.GetSource(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed definition not found"})
		return nil, false
	}

	return source, true
}

func (h *Handler) lookupFeedRecord(c *gin.Context, name string) (*database.Feed, bool) {
	feedRecord, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	if feedRecord == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not registered yet, wait for the next sync"})
		return nil, false
	}

	return feedRecord, true
}

func (h *Handler) renderEmailError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, email.ErrNoRecipient):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No recipient address configured"})
	case errors.Is(err, email.ErrNotConfigured):
		c.JSON(http.StatusBadRequest, gin.H{"error": "SMTP delivery is not configured"})
	default:
		slog.Error("Email delivery failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
