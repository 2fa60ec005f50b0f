package ai

import (
	"cmp"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"feed-digest/app/database"
	"feed-digest/app/feed"
)

const (
	// Per-item plain-text word cap scales with the items-per-digest
	// setting so the prompt stays bounded as the item budget grows.
	wordsPerItemSlot       = 25
	defaultMaxContentWords = 500

	markdownExcerptWords = 200
)

var stripPolicy = bluemonday.StrictPolicy()

// PromptBuilder renders the effective prompt template for one feed and its
// item pool.
type PromptBuilder struct {
	source   *feed.Source
	items    []database.Item
	template string

	maxContentWords int
}

// NewPromptBuilder resolves the effective template: feed-level custom
// prompt, then the type-specific built-in (general has none), then the
// globally configured template, then the built-in default.
func NewPromptBuilder(source *feed.Source, items []database.Item, globalTemplate string, itemsPerDigest int) *PromptBuilder {
	template := source.Settings.CustomPrompt
	if template == "" {
		template = templateForType(source.Settings.FeedType)
	}
	if template == "" {
		template = globalTemplate
	}
	if template == "" {
		template = defaultPromptTemplate
	}

	maxContentWords := defaultMaxContentWords
	if itemsPerDigest > 0 {
		maxContentWords = itemsPerDigest * wordsPerItemSlot
	}

	return &PromptBuilder{
		source:          source,
		items:           items,
		template:        template,
		maxContentWords: maxContentWords,
	}
}

// Build substitutes the template variables in a single pass; placeholders
// produced by a substitution are not expanded again.
func (b *PromptBuilder) Build() string {
	replacer := strings.NewReplacer(
		"{feed_name}", b.source.Label(),
		"{feed_description}", b.source.Description,
		"{period}", b.source.Period(),
		"{article_count}", strconv.Itoa(len(b.items)),
		"{articles_json}", b.formatItemsJSON(),
		"{articles_markdown}", b.formatItemsMarkdown(),
	)

	return replacer.Replace(b.template)
}

type promptArticle struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Content string `json:"content"`
	URL     string `json:"url"`
	Date    string `json:"date"`
	Author  string `json:"author"`
}

func (b *PromptBuilder) formatItemsJSON() string {
	articles := make([]promptArticle, 0, len(b.items))
	for _, item := range b.items {
		articles = append(articles, promptArticle{
			Title:   item.Title,
			Excerpt: stripTags(item.Excerpt),
			Content: trimWords(stripTags(item.Content), b.maxContentWords),
			URL:     item.Link,
			Date:    item.PublishedAt.Format("2006-01-02 15:04:05"),
			Author:  item.Author,
		})
	}

	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return "[]"
	}

	return string(data)
}

func (b *PromptBuilder) formatItemsMarkdown() string {
	var out strings.Builder

	for _, item := range b.items {
		excerpt := stripTags(item.Excerpt)
		if excerpt == "" {
			excerpt = trimWords(stripTags(item.Content), markdownExcerptWords)
		}

		fmt.Fprintf(&out, "## %s\n**URL:** %s\n**Date:** %s\n**Author:** %s\n\n%s\n\n---\n\n",
			item.Title,
			item.Link,
			item.PublishedAt.Format("2006-01-02 15:04:05"),
			cmp.Or(item.Author, "Unknown"),
			excerpt)
	}

	return out.String()
}

// TemplateVariables enumerates the supported placeholders with
// human-readable descriptions, for the prompt editor surface.
func TemplateVariables() map[string]string {
	return map[string]string{
		"{feed_name}":         "Name of the feed",
		"{feed_description}":  "Feed description if set",
		"{period}":            `"week" or "month" based on frequency`,
		"{article_count}":     "Number of articles being summarized",
		"{articles_json}":     "JSON array of articles with title, excerpt, content, url, date, author",
		"{articles_markdown}": "Articles formatted as markdown sections",
	}
}

// ValidateTemplate reports whether a template is usable: non-empty and
// containing at least one of the article-list placeholders.
func ValidateTemplate(template string) bool {
	if strings.TrimSpace(template) == "" {
		return false
	}

	return strings.Contains(template, "{articles_json}") ||
		strings.Contains(template, "{articles_markdown}")
}

// EstimateTokens is a cheap proxy for prompt size: four characters per
// token, rounded up. Not a tokenizer.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func stripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}

func trimWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:max], " ") + "…"
}
