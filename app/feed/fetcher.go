package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"feed-digest/app/database"
)

const (
	// Only the most recent entries of a document are considered.
	maxEntriesPerFetch = 50

	fetchTimeout = 30 * time.Second
)

// ContentExtractorInterface is what the fetcher needs from the content
// extractor; satisfied by *ContentExtractor.
type ContentExtractorInterface interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// Fetcher retrieves a feed document, ingests its new entries into the item
// store and updates the feed's freshness metadata.
type Fetcher struct {
	httpClient *http.Client
	parser     *Parser
	extractor  ContentExtractorInterface
	feedRepo   database.FeedRepository
	itemRepo   database.ItemRepository
	userAgent  string
}

func NewFetcher(httpClient *http.Client, parser *Parser, extractor ContentExtractorInterface,
	feedRepo database.FeedRepository, itemRepo database.ItemRepository, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		parser:     parser,
		extractor:  extractor,
		feedRepo:   feedRepo,
		itemRepo:   itemRepo,
		userAgent:  userAgent,
	}
}

// Fetch runs one ingestion pass for a source and returns the number of
// newly created items. Zero is a valid outcome.
func (f *Fetcher) Fetch(ctx context.Context, source *Source) (int, error) {
	feedURL, err := f.resolveFeedURL(source)
	if err != nil {
		return 0, err
	}

	feed, err := f.feedRepo.GetFeed(source.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to load feed record: %w", err)
	}
	if feed == nil {
		return 0, fmt.Errorf("feed %q is not registered in the database", source.Name)
	}

	data, err := f.fetchFeed(ctx, feedURL)
	if err != nil {
		return 0, err
	}

	items, err := f.parser.Run(data)
	if err != nil {
		return 0, err
	}

	if len(items) > maxEntriesPerFetch {
		items = items[:maxEntriesPerFetch]
	}

	created := 0
	for _, item := range items {
		ok, err := f.ingestItem(ctx, source, feed.ID, item)
		if err != nil {
			// A single bad item must not abort the batch.
			slog.Warn("Failed to store item, skipping", "feed", source.Name, "guid", item.GUID, "error", err)
			continue
		}
		if ok {
			created++
		}
	}

	if err := f.feedRepo.UpdateLastFetched(feed.ID); err != nil {
		return created, fmt.Errorf("failed to update last fetched time: %w", err)
	}

	return created, nil
}

// resolveFeedURL prefers the dedicated syndication URL and falls back to
// the main URL.
func (f *Fetcher) resolveFeedURL(source *Source) (string, error) {
	feedURL := source.FeedURL
	if feedURL == "" {
		feedURL = source.URL
	}
	if feedURL == "" {
		return "", fmt.Errorf("feed %q: %w", source.Name, ErrNoFeedURL)
	}

	if err := ValidateURL(feedURL); err != nil {
		return "", err
	}

	return feedURL, nil
}

// ValidateURL checks URL syntax; only absolute http(s) URLs are accepted.
func ValidateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}

func (f *Fetcher) ingestItem(ctx context.Context, source *Source, feedID string, item Item) (bool, error) {
	exists, err := f.itemRepo.ItemExists(feedID, item.GUID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	itemID, err := f.itemRepo.CreateItem(feedID, database.ItemData{
		GUID:        item.GUID,
		Title:       item.Title,
		Content:     item.Content,
		Excerpt:     item.Excerpt,
		Link:        item.Link,
		Author:      item.Author,
		PublishedAt: item.PublishedAt,
	})
	if err != nil {
		return false, err
	}
	if itemID == "" {
		// Lost a create race against a concurrent fetch; the item exists.
		return false, nil
	}

	if source.Settings.FetchFullContent && item.Link != "" {
		content, err := f.extractor.Extract(ctx, item.Link)
		if err != nil {
			// Extraction failure is never fatal; the feed-supplied
			// content stays in place.
			slog.Debug("Content extraction failed, keeping feed content",
				"feed", source.Name, "url", item.Link, "error", err)
		} else if err := f.itemRepo.UpdateItemContent(itemID, content); err != nil {
			slog.Warn("Failed to update extracted content", "feed", source.Name, "item_id", itemID, "error", err)
		}
	}

	return true, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// ValidateFeedURL checks that a URL is well-formed and serves a parseable
// feed with at least one entry. Used by the interactive validate action.
func (f *Fetcher) ValidateFeedURL(ctx context.Context, feedURL string) error {
	if err := ValidateURL(feedURL); err != nil {
		return err
	}

	data, err := f.fetchFeed(ctx, feedURL)
	if err != nil {
		return err
	}

	items, err := f.parser.Run(data)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		return fmt.Errorf("the feed appears to be empty or invalid")
	}

	return nil
}
