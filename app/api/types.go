package api

import (
	"feed-digest/app/ai"
	"feed-digest/app/database"
	"feed-digest/app/email"
	"feed-digest/app/feed"
	"feed-digest/app/tasks"
)

type Handler struct {
	sourceCache *feed.SourceCache
	feedRepo    database.FeedRepository
	itemRepo    database.ItemRepository
	digestRepo  database.DigestRepository
	fetcher     *feed.Fetcher
	generator   *ai.DigestGenerator
	client      *ai.Client
	newsletter  *email.Newsletter
	scheduler   tasks.TaskSchedulerInterface
}

type testEmailRequest struct {
	Recipient string `json:"recipient"`
}

type validateRequest struct {
	URL string `json:"url"`
}
