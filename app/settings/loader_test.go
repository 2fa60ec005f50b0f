package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSettingsFile(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write settings file: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got: %v", err)
	}

	if s.AI.Model != DefaultModel {
		t.Errorf("Expected default model '%s', got '%s'", DefaultModel, s.AI.Model)
	}
	if s.AI.Temperature != DefaultTemperature {
		t.Errorf("Expected default temperature %g, got %g", DefaultTemperature, s.AI.Temperature)
	}
	if s.General.ItemsPerDigest != DefaultItemsPerDigest {
		t.Errorf("Expected default items per digest %d, got %d", DefaultItemsPerDigest, s.General.ItemsPerDigest)
	}
	if s.General.CleanupAfterDays != DefaultCleanupAfterDays {
		t.Errorf("Expected default cleanup days %d, got %d", DefaultCleanupAfterDays, s.General.CleanupAfterDays)
	}
	if s.AI.APIKey != "" {
		t.Errorf("Expected empty API key, got '%s'", s.AI.APIKey)
	}
}

func TestLoadSettingsFile(t *testing.T) {
	path := writeSettingsFile(t, `
ai:
  api_key: test-key
  model: gemini-1.5-pro
  temperature: 0.4
  max_tokens: 4096
email:
  recipient: digest@example.com
  from_name: Digest Bot
  from_address: bot@example.com
  subject_prefix: "[Digest]"
  send_empty: true
  smtp_host: smtp.example.com
  smtp_port: 465
general:
  default_frequency: monthly
  fetch_full_content: true
  cleanup_after_days: 30
  items_per_digest: 10
prompt_template: "Summarize {articles_json}"
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if s.AI.APIKey != "test-key" {
		t.Errorf("Expected API key 'test-key', got '%s'", s.AI.APIKey)
	}
	if s.AI.Model != "gemini-1.5-pro" {
		t.Errorf("Expected model 'gemini-1.5-pro', got '%s'", s.AI.Model)
	}
	if s.AI.Temperature != 0.4 {
		t.Errorf("Expected temperature 0.4, got %g", s.AI.Temperature)
	}
	if s.Email.Recipient != "digest@example.com" {
		t.Errorf("Expected recipient 'digest@example.com', got '%s'", s.Email.Recipient)
	}
	if !s.Email.SendEmpty {
		t.Error("Expected send_empty to be true")
	}
	if s.Email.SMTPPort != 465 {
		t.Errorf("Expected SMTP port 465, got %d", s.Email.SMTPPort)
	}
	if s.General.DefaultFrequency != "monthly" {
		t.Errorf("Expected default frequency 'monthly', got '%s'", s.General.DefaultFrequency)
	}
	if s.General.ItemsPerDigest != 10 {
		t.Errorf("Expected items per digest 10, got %d", s.General.ItemsPerDigest)
	}
	if s.PromptTemplate != "Summarize {articles_json}" {
		t.Errorf("Unexpected prompt template: %s", s.PromptTemplate)
	}
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name, content string
	}{
		{"temperature too high", "ai:\n  temperature: 1.5\n"},
		{"max_tokens too low", "ai:\n  max_tokens: 100\n"},
		{"max_tokens too high", "ai:\n  max_tokens: 10000\n"},
		{"cleanup days too low", "general:\n  cleanup_after_days: 3\n"},
		{"cleanup days too high", "general:\n  cleanup_after_days: 400\n"},
		{"items per digest too low", "general:\n  items_per_digest: 2\n"},
		{"items per digest too high", "general:\n  items_per_digest: 150\n"},
		{"bad frequency", "general:\n  default_frequency: daily\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSettingsFile(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeSettingsFile(t, "ai: [not\n  a map")
	if _, err := Load(path); err == nil {
		t.Error("Expected parse error for malformed YAML")
	}
}
