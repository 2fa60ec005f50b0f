package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SourceCache loads and holds the feed definitions from the feeds
// directory.
type SourceCache struct {
	feedsDir         string
	defaultFrequency string
	fetchFullDefault bool
	cache            map[string]*Source
	mu               sync.RWMutex
}

func NewSourceCache(feedsDir, defaultFrequency string, fetchFullDefault bool) *SourceCache {
	return &SourceCache{
		feedsDir:         feedsDir,
		defaultFrequency: defaultFrequency,
		fetchFullDefault: fetchFullDefault,
		cache:            make(map[string]*Source),
	}
}

func (sc *SourceCache) Run() error {
	if _, err := os.Stat(sc.feedsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(sc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		feedName := strings.TrimSuffix(filepath.Base(file), ".yml")

		source, err := sc.LoadSource(feedName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Feed definition loaded", "feed", feedName,
			"active", source.Settings.Active,
			"type", source.Settings.FeedType,
			"frequency", source.Settings.DigestFrequency)
	}

	return nil
}

func (sc *SourceCache) LoadSource(feedName string) (*Source, error) {
	configFile := filepath.Join(sc.feedsDir, feedName+".yml")
	source, err := sc.parseSource(configFile)
	if err != nil {
		return nil, err
	}

	source.Name = feedName

	if err := sc.validateSource(source); err != nil {
		return nil, fmt.Errorf("invalid definition %s: %w", configFile, err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cache[source.Name] = source

	return source, nil
}

func (sc *SourceCache) GetSource(feedName string) (*Source, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	source, ok := sc.cache[feedName]
	if !ok {
		return nil, fmt.Errorf("feed definition with name '%s' not found", feedName)
	}
	return source, nil
}

func (sc *SourceCache) GetSources() map[string]*Source {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	sourcesCopy := make(map[string]*Source, len(sc.cache))
	for k, v := range sc.cache {
		sourcesCopy[k] = v
	}
	return sourcesCopy
}

func (sc *SourceCache) GetActiveSources() map[string]*Source {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	activeSources := make(map[string]*Source)
	for k, v := range sc.cache {
		if v.Settings.Active {
			activeSources[k] = v
		}
	}
	return activeSources
}

func (sc *SourceCache) GetSourceCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cache)
}

// rawSettings mirrors SourceSettings with a pointer for active, so that an
// omitted key defaults to true rather than to the zero value.
type rawSettings struct {
	Active           *bool  `yaml:"active"`
	FeedType         string `yaml:"feed_type"`
	DigestFrequency  string `yaml:"digest_frequency"`
	FetchFullContent *bool  `yaml:"fetch_full_content"`
	CustomPrompt     string `yaml:"custom_prompt"`
}

func (sc *SourceCache) parseSource(configFile string) (*Source, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var raw struct {
		Name        string      `yaml:"name"`
		Description string      `yaml:"description"`
		URL         string      `yaml:"url"`
		FeedURL     string      `yaml:"feed_url"`
		Settings    rawSettings `yaml:"settings"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	source := &Source{
		DisplayName: raw.Name,
		Description: raw.Description,
		URL:         raw.URL,
		FeedURL:     raw.FeedURL,
		Settings: SourceSettings{
			Active:           true,
			FeedType:         raw.Settings.FeedType,
			DigestFrequency:  raw.Settings.DigestFrequency,
			CustomPrompt:     raw.Settings.CustomPrompt,
			FetchFullContent: sc.fetchFullDefault,
		},
	}

	if raw.Settings.Active != nil {
		source.Settings.Active = *raw.Settings.Active
	}
	if raw.Settings.FetchFullContent != nil {
		source.Settings.FetchFullContent = *raw.Settings.FetchFullContent
	}
	if source.Settings.FeedType == "" {
		source.Settings.FeedType = TypeGeneral
	}
	if source.Settings.DigestFrequency == "" {
		source.Settings.DigestFrequency = sc.defaultFrequency
	}

	return source, nil
}

func (sc *SourceCache) validateSource(source *Source) error {
	if source == nil {
		return fmt.Errorf("definition is nil")
	}

	if source.URL == "" && source.FeedURL == "" {
		return fmt.Errorf("either url or feed_url is required")
	}

	switch source.Settings.FeedType {
	case TypeGeneral, TypeLinkblog, TypeMusic:
	default:
		return fmt.Errorf("unknown feed_type %q", source.Settings.FeedType)
	}

	switch source.Settings.DigestFrequency {
	case FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("unknown digest_frequency %q", source.Settings.DigestFrequency)
	}

	return nil
}
