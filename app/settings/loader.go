package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModel            = "gemini-1.5-flash"
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 8192
	DefaultFrequency        = "weekly"
	DefaultCleanupAfterDays = 90
	DefaultItemsPerDigest   = 20
	DefaultSMTPPort         = 587
)

// Load reads the settings bundle file, applies defaults for omitted values
// and validates the configured ranges.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No settings file yet, run with defaults. The generative
			// client reports the missing API key when it is first used.
			s := defaults()
			return &s, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	s := defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}

	return &s, nil
}

func defaults() Settings {
	return Settings{
		AI: AISettings{
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		Email: EmailSettings{
			SMTPPort: DefaultSMTPPort,
		},
		General: GeneralSettings{
			DefaultFrequency: DefaultFrequency,
			CleanupAfterDays: DefaultCleanupAfterDays,
			ItemsPerDigest:   DefaultItemsPerDigest,
		},
	}
}

func (s *Settings) validate() error {
	if s.AI.Temperature < 0 || s.AI.Temperature > 1 {
		return fmt.Errorf("ai.temperature must be between 0 and 1, got %g", s.AI.Temperature)
	}
	if s.AI.MaxTokens < 256 || s.AI.MaxTokens > 8192 {
		return fmt.Errorf("ai.max_tokens must be between 256 and 8192, got %d", s.AI.MaxTokens)
	}
	if s.General.CleanupAfterDays < 7 || s.General.CleanupAfterDays > 365 {
		return fmt.Errorf("general.cleanup_after_days must be between 7 and 365, got %d", s.General.CleanupAfterDays)
	}
	if s.General.ItemsPerDigest < 5 || s.General.ItemsPerDigest > 100 {
		return fmt.Errorf("general.items_per_digest must be between 5 and 100, got %d", s.General.ItemsPerDigest)
	}
	if s.General.DefaultFrequency != "weekly" && s.General.DefaultFrequency != "monthly" {
		return fmt.Errorf("general.default_frequency must be weekly or monthly, got %q", s.General.DefaultFrequency)
	}
	return nil
}
