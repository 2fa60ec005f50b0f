package ai

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"feed-digest/app/database"
	"feed-digest/app/feed"
	"feed-digest/app/settings"
)

const (
	defaultItemsPerDigest = 20
	previewItemCount      = 5

	// Prompts estimated above this many tokens are rebuilt once with a
	// reduced item set.
	promptTokenBudget   = 100000
	reducedItemFallback = 10
)

var (
	codeFenceOpenRe  = regexp.MustCompile("^```(?:html?)?\\s*")
	codeFenceCloseRe = regexp.MustCompile("\\s*```$")
	htmlTagRe        = regexp.MustCompile(`<[^>]+>`)
)

type ClientInterface interface {
	IsConfigured() bool
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// DigestGenerator turns a feed's undigested item pool into a persisted
// digest record. Delivery is a separate concern handled by the caller.
type DigestGenerator struct {
	client     ClientInterface
	itemRepo   database.ItemRepository
	digestRepo database.DigestRepository
	settings   *settings.Settings
	policy     *bluemonday.Policy
}

func NewDigestGenerator(client ClientInterface, itemRepo database.ItemRepository, digestRepo database.DigestRepository, stg *settings.Settings) *DigestGenerator {
	return &DigestGenerator{
		client:     client,
		itemRepo:   itemRepo,
		digestRepo: digestRepo,
		settings:   stg,
		policy:     digestContentPolicy(),
	}
}

// Generate runs the full pipeline for one feed: load items, build the
// prompt, call the model, clean the output, persist the digest and mark
// the consumed items. Returns the new digest id.
func (g *DigestGenerator) Generate(ctx context.Context, source *feed.Source, feedID string) (string, error) {
	if !g.client.IsConfigured() {
		return "", ErrNotConfigured
	}

	itemsPerDigest := g.settings.General.ItemsPerDigest
	if itemsPerDigest <= 0 {
		itemsPerDigest = defaultItemsPerDigest
	}

	items, err := g.itemRepo.GetUndigestedItems(feedID, itemsPerDigest)
	if err != nil {
		return "", fmt.Errorf("failed to load undigested items: %w", err)
	}

	if len(items) == 0 && !g.settings.Email.SendEmpty {
		return "", ErrNoItems
	}

	content, err := g.generateContent(ctx, source, items)
	if err != nil {
		return "", err
	}

	title := g.digestTitle(source)

	digestID, err := g.digestRepo.CreateDigest(feedID, title, content, len(items))
	if err != nil {
		return "", fmt.Errorf("failed to persist digest: %w", err)
	}

	itemIDs := make([]string, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
	}

	if err := g.itemRepo.MarkItemsDigested(itemIDs, digestID); err != nil {
		return "", fmt.Errorf("failed to mark items digested: %w", err)
	}

	slog.Debug("Digest generated", "feed", source.Name, "digest_id", digestID, "item_count", len(items))

	return digestID, nil
}

// GeneratePreview renders a digest from the feed's most recent items
// without persisting anything. Used for interactive prompt testing.
func (g *DigestGenerator) GeneratePreview(ctx context.Context, source *feed.Source, feedID string) (string, error) {
	if !g.client.IsConfigured() {
		return "", ErrNotConfigured
	}

	items, err := g.itemRepo.GetItemsByFeed(feedID, previewItemCount)
	if err != nil {
		return "", fmt.Errorf("failed to load items: %w", err)
	}

	if len(items) == 0 && !g.settings.Email.SendEmpty {
		return "", ErrNoItems
	}

	return g.generateContent(ctx, source, items)
}

func (g *DigestGenerator) generateContent(ctx context.Context, source *feed.Source, items []database.Item) (string, error) {
	itemsPerDigest := g.settings.General.ItemsPerDigest

	prompt := NewPromptBuilder(source, items, g.settings.PromptTemplate, itemsPerDigest).Build()

	if EstimateTokens(prompt) > promptTokenBudget && len(items) > reducedItemFallback {
		slog.Warn("Prompt over token budget, retrying with reduced item set",
			"feed", source.Name, "item_count", len(items), "reduced_count", reducedItemFallback)
		prompt = NewPromptBuilder(source, items[:reducedItemFallback], g.settings.PromptTemplate, itemsPerDigest).Build()
	}

	raw, err := g.client.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}

	return g.cleanGeneratedContent(raw), nil
}

// cleanGeneratedContent strips a wrapping markdown code fence, wraps bare
// text into paragraphs and sanitizes the result to a safe-HTML allowlist.
func (g *DigestGenerator) cleanGeneratedContent(content string) string {
	content = strings.TrimSpace(content)
	content = codeFenceOpenRe.ReplaceAllString(content, "")
	content = codeFenceCloseRe.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)

	if !htmlTagRe.MatchString(content) {
		blocks := strings.Split(content, "\n\n")
		var out strings.Builder
		for _, block := range blocks {
			block = strings.TrimSpace(block)
			if block == "" {
				continue
			}
			out.WriteString("<p>")
			out.WriteString(block)
			out.WriteString("</p>\n")
		}
		content = out.String()
	}

	return strings.TrimSpace(g.policy.Sanitize(content))
}

func (g *DigestGenerator) digestTitle(source *feed.Source) string {
	label := "Weekly"
	if source.Settings.DigestFrequency == feed.FrequencyMonthly {
		label = "Monthly"
	}

	return fmt.Sprintf("%s Digest: %s - %s", label, source.Label(), time.Now().Format("January 2, 2006"))
}

func digestContentPolicy() *bluemonday.Policy {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("h1", "h2", "h3", "h4", "p", "br", "strong", "b", "em", "i",
		"ul", "ol", "li", "blockquote", "hr", "div", "span")
	policy.AllowAttrs("href", "title", "target").OnElements("a")
	policy.AllowAttrs("class").OnElements("div", "span")
	policy.RequireParseableURLs(true)
	policy.AllowURLSchemes("http", "https", "mailto")

	return policy
}
