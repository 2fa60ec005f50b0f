package feed

import (
	"cmp"
	"time"
)

// Feed type identifiers. Each non-general type selects a specialized
// built-in prompt template.
const (
	TypeGeneral  = "general"
	TypeLinkblog = "linkblog"
	TypeMusic    = "music"
)

// Digest frequency identifiers.
const (
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Source is a feed definition loaded from the feeds directory. Definitions
// are owned by whoever edits the files; the pipeline only reads them.
type Source struct {
	Name        string         // Derived from filename (without .yml extension)
	DisplayName string         `yaml:"name"`
	Description string         `yaml:"description"`
	URL         string         `yaml:"url"`
	FeedURL     string         `yaml:"feed_url"`
	Settings    SourceSettings `yaml:"settings"`
}

type SourceSettings struct {
	Active           bool   `yaml:"-"`
	FeedType         string `yaml:"feed_type"`
	DigestFrequency  string `yaml:"digest_frequency"`
	FetchFullContent bool   `yaml:"fetch_full_content"`
	CustomPrompt     string `yaml:"custom_prompt"`
}

// Label returns the human-readable feed name used in digests and emails.
func (s *Source) Label() string {
	return cmp.Or(s.DisplayName, s.Name)
}

// Period returns the period word substituted into prompts.
func (s *Source) Period() string {
	if s.Settings.DigestFrequency == FrequencyMonthly {
		return "month"
	}
	return "week"
}

// DigestInterval returns the time between digests, in fixed-size units
// (a "month" is 30 days, not calendar-aware).
func (s *Source) DigestInterval() time.Duration {
	if s.Settings.DigestFrequency == FrequencyMonthly {
		return 30 * 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// Item is one normalized feed entry produced by the parser.
type Item struct {
	GUID        string
	Title       string
	Content     string
	Excerpt     string
	Link        string
	Author      string
	PublishedAt time.Time
}
