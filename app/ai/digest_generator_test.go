package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"feed-digest/app/database"
	"feed-digest/app/feed"
	"feed-digest/app/settings"
)

type mockClient struct {
	configured bool
	response   string
	err        error

	calls      int
	lastPrompt string
}

func (m *mockClient) IsConfigured() bool {
	return m.configured
}

func (m *mockClient) GenerateContent(_ context.Context, prompt string) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

type mockItemRepo struct {
	items []database.Item

	markedIDs      []string
	markedDigestID string
}

func (m *mockItemRepo) ItemExists(feedID, guid string) (bool, error) { return false, nil }

func (m *mockItemRepo) CreateItem(feedID string, data database.ItemData) (string, error) {
	return "", nil
}

func (m *mockItemRepo) UpdateItemContent(itemID, content string) error { return nil }

func (m *mockItemRepo) GetUndigestedItems(feedID string, limit int) ([]database.Item, error) {
	if limit < len(m.items) {
		return m.items[:limit], nil
	}
	return m.items, nil
}

func (m *mockItemRepo) GetItemsByFeed(feedID string, limit int) ([]database.Item, error) {
	if limit < len(m.items) {
		return m.items[:limit], nil
	}
	return m.items, nil
}

func (m *mockItemRepo) MarkItemsDigested(itemIDs []string, digestID string) error {
	m.markedIDs = append(m.markedIDs, itemIDs...)
	m.markedDigestID = digestID
	return nil
}

func (m *mockItemRepo) GetItemCount(feedID string, undigestedOnly bool) (int, error) {
	return len(m.items), nil
}

func (m *mockItemRepo) DeleteOldDigestedItems(before time.Time, batchSize int) (int, error) {
	return 0, nil
}

type mockDigestRepo struct {
	created   bool
	title     string
	content   string
	itemCount int
}

func (m *mockDigestRepo) CreateDigest(feedID, title, content string, itemCount int) (string, error) {
	m.created = true
	m.title = title
	m.content = content
	m.itemCount = itemCount
	return "digest-1", nil
}

func (m *mockDigestRepo) GetDigest(id string) (*database.Digest, error)        { return nil, nil }
func (m *mockDigestRepo) GetDigestsByFeed(string, int) ([]database.Digest, error) {
	return nil, nil
}
func (m *mockDigestRepo) GetAllDigests(limit int) ([]database.Digest, error) { return nil, nil }
func (m *mockDigestRepo) MarkDigestSent(id, recipient string) error          { return nil }
func (m *mockDigestRepo) DeleteDigest(id string) error                       { return nil }
func (m *mockDigestRepo) GetDigestCount() (int, error)                       { return 0, nil }

func testSettings() *settings.Settings {
	return &settings.Settings{
		AI: settings.AISettings{
			APIKey:      "test-key",
			Model:       "test-model",
			Temperature: 0.7,
			MaxTokens:   1024,
		},
		General: settings.GeneralSettings{
			DefaultFrequency: feed.FrequencyWeekly,
			ItemsPerDigest:   20,
			CleanupAfterDays: 90,
		},
	}
}

func digestItems(count int) []database.Item {
	items := make([]database.Item, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, database.Item{
			ID:          "item-" + strings.Repeat("x", i+1),
			Title:       "Article",
			Content:     "<p>Article body text.</p>",
			Excerpt:     "Excerpt",
			Link:        "https://example.com/post",
			Author:      "Author",
			PublishedAt: time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
		})
	}
	return items
}

func TestDigestGenerator_Generate_NotConfigured(t *testing.T) {
	client := &mockClient{configured: false}
	itemRepo := &mockItemRepo{items: digestItems(3)}
	digestRepo := &mockDigestRepo{}

	generator := NewDigestGenerator(client, itemRepo, digestRepo, testSettings())

	_, err := generator.Generate(context.Background(), testSource(feed.TypeGeneral, feed.FrequencyWeekly), "feed-1")

	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	if client.calls != 0 {
		t.Errorf("Expected no client call, got %d", client.calls)
	}
}

func TestDigestGenerator_Generate_NoItems(t *testing.T) {
	client := &mockClient{configured: true, response: "text"}
	itemRepo := &mockItemRepo{}
	digestRepo := &mockDigestRepo{}

	generator := NewDigestGenerator(client, itemRepo, digestRepo, testSettings())

	_, err := generator.Generate(context.Background(), testSource(feed.TypeGeneral, feed.FrequencyWeekly), "feed-1")

	if !errors.Is(err, ErrNoItems) {
		t.Errorf("Expected ErrNoItems, got %v", err)
	}
	if digestRepo.created {
		t.Errorf("No digest should be created when there are no items")
	}
}

func TestDigestGenerator_Generate_SendEmptyProceedsWithoutItems(t *testing.T) {
	client := &mockClient{configured: true, response: "<p>Quiet week.</p>"}
	itemRepo := &mockItemRepo{}
	digestRepo := &mockDigestRepo{}

	stg := testSettings()
	stg.Email.SendEmpty = true

	generator := NewDigestGenerator(client, itemRepo, digestRepo, stg)

	digestID, err := generator.Generate(context.Background(), testSource(feed.TypeGeneral, feed.FrequencyWeekly), "feed-1")

	if err != nil {
		t.Fatalf("Expected empty digest to generate, got %v", err)
	}
	if digestID != "digest-1" {
		t.Errorf("Expected digest id, got %q", digestID)
	}
	if digestRepo.itemCount != 0 {
		t.Errorf("Expected item count 0, got %d", digestRepo.itemCount)
	}
}

func TestDigestGenerator_Generate_Success(t *testing.T) {
	client := &mockClient{configured: true, response: "<p>Generated text</p>"}
	itemRepo := &mockItemRepo{items: digestItems(5)}
	digestRepo := &mockDigestRepo{}

	generator := NewDigestGenerator(client, itemRepo, digestRepo, testSettings())

	source := testSource(feed.TypeGeneral, feed.FrequencyWeekly)
	digestID, err := generator.Generate(context.Background(), source, "feed-1")

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if digestID != "digest-1" {
		t.Errorf("Expected digest id from repository, got %q", digestID)
	}
	if !digestRepo.created {
		t.Fatalf("Expected digest to be persisted")
	}
	if digestRepo.itemCount != 5 {
		t.Errorf("Expected item count 5, got %d", digestRepo.itemCount)
	}
	if digestRepo.content != "<p>Generated text</p>" {
		t.Errorf("Expected cleaned content, got %q", digestRepo.content)
	}
	if !strings.HasPrefix(digestRepo.title, "Weekly Digest: Example Feed - ") {
		t.Errorf("Unexpected digest title: %s", digestRepo.title)
	}
	if len(itemRepo.markedIDs) != 5 {
		t.Errorf("Expected 5 items marked digested, got %d", len(itemRepo.markedIDs))
	}
	if itemRepo.markedDigestID != "digest-1" {
		t.Errorf("Expected items linked to new digest, got %q", itemRepo.markedDigestID)
	}
}

func TestDigestGenerator_Generate_MonthlyTitle(t *testing.T) {
	client := &mockClient{configured: true, response: "<p>ok</p>"}
	itemRepo := &mockItemRepo{items: digestItems(1)}
	digestRepo := &mockDigestRepo{}

	generator := NewDigestGenerator(client, itemRepo, digestRepo, testSettings())

	_, err := generator.Generate(context.Background(), testSource(feed.TypeGeneral, feed.FrequencyMonthly), "feed-1")

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if !strings.HasPrefix(digestRepo.title, "Monthly Digest: ") {
		t.Errorf("Expected monthly title, got %s", digestRepo.title)
	}
}

func TestDigestGenerator_Generate_ClientErrorPropagated(t *testing.T) {
	apiErr := &APIError{Status: 429, Message: "Quota exceeded"}
	client := &mockClient{configured: true, err: apiErr}
	itemRepo := &mockItemRepo{items: digestItems(2)}
	digestRepo := &mockDigestRepo{}

	generator := NewDigestGenerator(client, itemRepo, digestRepo, testSettings())

	_, err := generator.Generate(context.Background(), testSource(feed.TypeGeneral, feed.FrequencyWeekly), "feed-1")

	var gotErr *APIError
	if !errors.As(err, &gotErr) {
		t.Fatalf("Expected APIError propagated verbatim, got %v", err)
	}
	if digestRepo.created {
		t.Errorf("No digest should be created on client failure")
	}
	if len(itemRepo.markedIDs) != 0 {
		t.Errorf("No items should be marked on client failure")
	}
}

func TestDigestGenerator_Generate_TokenBudgetFallback(t *testing.T) {
	client := &mockClient{configured: true, response: "<p>ok</p>"}

	// Each item carries enough plain text that the full 20-item prompt
	// blows past the token budget.
	items := digestItems(20)
	for i := range items {
		items[i].Content = strings.Repeat("verylongword ", 2500)
	}
	itemRepo := &mockItemRepo{items: items}
	digestRepo := &mockDigestRepo{}

	stg := testSettings()
	stg.General.ItemsPerDigest = 100

	generator := NewDigestGenerator(client, itemRepo, digestRepo, stg)

	source := testSource(feed.TypeGeneral, feed.FrequencyWeekly)
	source.Settings.CustomPrompt = "count={article_count}\n{articles_json}"

	_, err := generator.Generate(context.Background(), source, "feed-1")

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if client.calls != 1 {
		t.Errorf("Expected a single client call after one rebuild, got %d", client.calls)
	}
	if !strings.HasPrefix(client.lastPrompt, "count=10\n") {
		t.Errorf("Expected prompt rebuilt with first 10 items, got prefix %.20q", client.lastPrompt)
	}
	if digestRepo.itemCount != 20 {
		t.Errorf("Digest still covers the full item pool, got count %d", digestRepo.itemCount)
	}
}

func TestDigestGenerator_CleanGeneratedContent_FenceRoundTrip(t *testing.T) {
	generator := NewDigestGenerator(&mockClient{}, &mockItemRepo{}, &mockDigestRepo{}, testSettings())

	cleaned := generator.cleanGeneratedContent("```html\n<p>Hello</p>\n```")

	if cleaned != "<p>Hello</p>" {
		t.Errorf("Expected fence stripped, got %q", cleaned)
	}
	if strings.Contains(cleaned, "```") {
		t.Errorf("No fence markers should remain")
	}
}

func TestDigestGenerator_CleanGeneratedContent_ParagraphWrap(t *testing.T) {
	generator := NewDigestGenerator(&mockClient{}, &mockItemRepo{}, &mockDigestRepo{}, testSettings())

	cleaned := generator.cleanGeneratedContent("First block.\n\nSecond block.")

	if !strings.Contains(cleaned, "<p>First block.</p>") || !strings.Contains(cleaned, "<p>Second block.</p>") {
		t.Errorf("Expected plain text wrapped into paragraphs, got %q", cleaned)
	}
}

func TestDigestGenerator_CleanGeneratedContent_Sanitizes(t *testing.T) {
	generator := NewDigestGenerator(&mockClient{}, &mockItemRepo{}, &mockDigestRepo{}, testSettings())

	cleaned := generator.cleanGeneratedContent(`<h2>Title</h2><script>alert(1)</script><p onclick="x">Body</p>`)

	if strings.Contains(cleaned, "script") || strings.Contains(cleaned, "alert") {
		t.Errorf("Expected script removed, got %q", cleaned)
	}
	if strings.Contains(cleaned, "onclick") {
		t.Errorf("Expected event handler attribute removed, got %q", cleaned)
	}
	if !strings.Contains(cleaned, "<h2>Title</h2>") {
		t.Errorf("Expected allowed heading preserved, got %q", cleaned)
	}
}

func TestDigestGenerator_GeneratePreview_DoesNotPersist(t *testing.T) {
	client := &mockClient{configured: true, response: "<p>Preview</p>"}
	itemRepo := &mockItemRepo{items: digestItems(10)}
	digestRepo := &mockDigestRepo{}

	generator := NewDigestGenerator(client, itemRepo, digestRepo, testSettings())

	content, err := generator.GeneratePreview(context.Background(), testSource(feed.TypeGeneral, feed.FrequencyWeekly), "feed-1")

	if err != nil {
		t.Fatalf("Expected preview to succeed, got %v", err)
	}
	if content != "<p>Preview</p>" {
		t.Errorf("Expected cleaned preview content, got %q", content)
	}
	if digestRepo.created {
		t.Errorf("Preview must not persist a digest")
	}
	if len(itemRepo.markedIDs) != 0 {
		t.Errorf("Preview must not mark items digested")
	}
}
