package ai

import (
	"strings"
	"testing"
	"time"

	"feed-digest/app/database"
	"feed-digest/app/feed"
)

func testSource(feedType, frequency string) *feed.Source {
	return &feed.Source{
		Name:        "example",
		DisplayName: "Example Feed",
		Description: "A feed about examples",
		URL:         "https://example.com",
		FeedURL:     "https://example.com/feed.xml",
		Settings: feed.SourceSettings{
			Active:          true,
			FeedType:        feedType,
			DigestFrequency: frequency,
		},
	}
}

func testItems(count int) []database.Item {
	items := make([]database.Item, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, database.Item{
			ID:          "item-" + string(rune('a'+i)),
			Title:       "Article Title",
			Content:     "<p>Some article content with enough words to matter.</p>",
			Excerpt:     "Some excerpt",
			Link:        "https://example.com/post",
			Author:      "Jane Writer",
			PublishedAt: time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
		})
	}
	return items
}

func TestPromptBuilder_Build_CustomPromptTakesPriority(t *testing.T) {
	source := testSource(feed.TypeMusic, feed.FrequencyWeekly)
	source.Settings.CustomPrompt = "Custom prompt for {feed_name}: {articles_markdown}"

	builder := NewPromptBuilder(source, testItems(2), "Global: {articles_json}", 20)
	result := builder.Build()

	if !strings.HasPrefix(result, "Custom prompt for Example Feed:") {
		t.Errorf("Expected custom prompt to win, got: %.60s", result)
	}
	if strings.Contains(result, "Global:") {
		t.Errorf("Global template should not be used when a custom prompt is set")
	}
}

func TestPromptBuilder_Build_TypeTemplateFallback(t *testing.T) {
	source := testSource(feed.TypeMusic, feed.FrequencyWeekly)

	builder := NewPromptBuilder(source, testItems(1), "", 20)
	result := builder.Build()

	if !strings.Contains(result, "music digest") {
		t.Errorf("Expected music template for music feed type")
	}
}

func TestPromptBuilder_Build_GeneralFallsThroughToGlobal(t *testing.T) {
	source := testSource(feed.TypeGeneral, feed.FrequencyWeekly)

	builder := NewPromptBuilder(source, testItems(1), "Global template {articles_markdown}", 20)
	result := builder.Build()

	if !strings.HasPrefix(result, "Global template ") {
		t.Errorf("Expected general feed without custom prompt to use global template, got: %.60s", result)
	}
}

func TestPromptBuilder_Build_DefaultTemplate(t *testing.T) {
	source := testSource(feed.TypeGeneral, feed.FrequencyWeekly)

	builder := NewPromptBuilder(source, testItems(1), "", 20)
	result := builder.Build()

	if !strings.Contains(result, "newsletter digest") {
		t.Errorf("Expected built-in default template when nothing else is configured")
	}
}

func TestPromptBuilder_Build_PlaceholderSubstitution(t *testing.T) {
	source := testSource(feed.TypeGeneral, feed.FrequencyMonthly)
	source.Settings.CustomPrompt = "{feed_name}|{feed_description}|{period}|{article_count}|{articles_markdown}"

	builder := NewPromptBuilder(source, testItems(3), "", 20)
	result := builder.Build()

	if !strings.HasPrefix(result, "Example Feed|A feed about examples|month|3|") {
		t.Errorf("Unexpected substitution result: %.80s", result)
	}

	source.Settings.DigestFrequency = feed.FrequencyWeekly
	result = NewPromptBuilder(source, testItems(3), "", 20).Build()

	if !strings.Contains(result, "|week|") {
		t.Errorf("Expected weekly frequency to substitute 'week'")
	}
}

func TestPromptBuilder_Build_ArticlesJSONFields(t *testing.T) {
	source := testSource(feed.TypeGeneral, feed.FrequencyWeekly)
	source.Settings.CustomPrompt = "{articles_json}"

	result := NewPromptBuilder(source, testItems(1), "", 20).Build()

	for _, field := range []string{`"title"`, `"excerpt"`, `"content"`, `"url"`, `"date"`, `"author"`} {
		if !strings.Contains(result, field) {
			t.Errorf("Expected JSON output to contain %s field", field)
		}
	}
	if strings.Contains(result, "<p>") {
		t.Errorf("Expected HTML tags to be stripped from JSON content")
	}
}

func TestPromptBuilder_Build_MarkdownAuthorFallback(t *testing.T) {
	source := testSource(feed.TypeGeneral, feed.FrequencyWeekly)
	source.Settings.CustomPrompt = "{articles_markdown}"

	items := testItems(1)
	items[0].Author = ""

	result := NewPromptBuilder(source, items, "", 20).Build()

	if !strings.Contains(result, "**Author:** Unknown") {
		t.Errorf("Expected missing author to render as Unknown")
	}
}

func TestPromptBuilder_Build_ContentWordCap(t *testing.T) {
	source := testSource(feed.TypeGeneral, feed.FrequencyWeekly)
	source.Settings.CustomPrompt = "{articles_json}"

	items := testItems(1)
	items[0].Content = strings.Repeat("word ", 1000)

	// Cap is 25 words per configured item slot: 5 slots -> 125 words.
	result := NewPromptBuilder(source, items, "", 5).Build()

	words := strings.Count(result, "word")
	if words > 130 {
		t.Errorf("Expected content capped around 125 words, counted %d occurrences", words)
	}
	if words < 120 {
		t.Errorf("Expected content near the 125 word cap, counted %d occurrences", words)
	}
}

func TestValidateTemplate(t *testing.T) {
	cases := []struct {
		template string
		valid    bool
	}{
		{"", false},
		{"   ", false},
		{"No placeholders here", false},
		{"Summarize: {articles_json}", true},
		{"Summarize: {articles_markdown}", true},
	}

	for _, c := range cases {
		if got := ValidateTemplate(c.template); got != c.valid {
			t.Errorf("ValidateTemplate(%q) = %v, expected %v", c.template, got, c.valid)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("Expected 0 tokens for empty string, got %d", got)
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Errorf("Expected 1 token for 4 chars, got %d", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Errorf("Expected 2 tokens for 5 chars, got %d", got)
	}
}

func TestTemplateVariables(t *testing.T) {
	vars := TemplateVariables()

	for _, name := range []string{"{feed_name}", "{feed_description}", "{period}", "{article_count}", "{articles_json}", "{articles_markdown}"} {
		if vars[name] == "" {
			t.Errorf("Expected a description for %s", name)
		}
	}
}
