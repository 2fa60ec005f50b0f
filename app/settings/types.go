package settings

// Settings bundles consumed by the pipeline. Loaded once at startup from a
// YAML file and passed explicitly to the components that need them.

type Settings struct {
	AI             AISettings      `yaml:"ai"`
	Email          EmailSettings   `yaml:"email"`
	General        GeneralSettings `yaml:"general"`
	PromptTemplate string          `yaml:"prompt_template"`
}

type AISettings struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type EmailSettings struct {
	Recipient     string `yaml:"recipient"`
	FromName      string `yaml:"from_name"`
	FromAddress   string `yaml:"from_address"`
	SubjectPrefix string `yaml:"subject_prefix"`
	SendEmpty     bool   `yaml:"send_empty"`
	SMTPHost      string `yaml:"smtp_host"`
	SMTPPort      int    `yaml:"smtp_port"`
	SMTPUsername  string `yaml:"smtp_username"`
	SMTPPassword  string `yaml:"smtp_password"`
}

type GeneralSettings struct {
	DefaultFrequency string `yaml:"default_frequency"`
	FetchFullContent bool   `yaml:"fetch_full_content"`
	CleanupAfterDays int    `yaml:"cleanup_after_days"`
	ItemsPerDigest   int    `yaml:"items_per_digest"`
}
