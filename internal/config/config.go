package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"jobmail-engine/internal/classify"
)

const (
	ProviderIMAP  = "imap"
	ProviderGmail = "gmail"
)

type Config struct {
	App struct {
		Port int `yaml:"port"`
		// AllowedOrigins are the browser origins granted cross-origin access,
		// e.g. "http://localhost:5173". Empty means none.
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"app"`

	Inbox struct {
		Provider string `yaml:"provider"` // imap | gmail

		IMAP struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Username string `yaml:"username"`
			Mailbox  string `yaml:"mailbox"`
			MaxRows  int    `yaml:"max_rows"`
			Flag     string `yaml:"flag"`
		} `yaml:"imap"`

		Gmail struct {
			CredentialsPath string `yaml:"credentials_path"`
			TokenPath       string `yaml:"token_path"`
			MaxRows         int    `yaml:"max_rows"`
			Label           string `yaml:"label"`
			PollSeconds     int    `yaml:"poll_seconds"`
		} `yaml:"gmail"`
	} `yaml:"inbox"`

	Scan struct {
		StaggerMS   int `yaml:"stagger_ms"`
		DebounceMS  int `yaml:"debounce_ms"`
		PollSeconds int `yaml:"poll_seconds"`
	} `yaml:"scan"`

	AI struct {
		Provider       string `yaml:"provider"` // none | ollama | bedrock
		Endpoint       string `yaml:"endpoint"`
		Model          string `yaml:"model"`
		Region         string `yaml:"region"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		ExcerptChars   int    `yaml:"excerpt_chars"`
	} `yaml:"ai"`

	Classifier struct {
		Keywords classify.Keywords `yaml:"keywords"`
		// KeywordsFile optionally replaces the keyword lists above.
		KeywordsFile string `yaml:"keywords_file"`
	} `yaml:"classifier"`
}

// Defaults is the configuration written when no user config exists.
func Defaults() Config {
	var c Config
	c.App.Port = 38472
	c.Inbox.Provider = ProviderIMAP
	c.Inbox.IMAP.Host = "imap.gmail.com"
	c.Inbox.IMAP.Port = 993
	c.Inbox.IMAP.Mailbox = "INBOX"
	c.Inbox.IMAP.MaxRows = 50
	c.Inbox.IMAP.Flag = "$JobMailOA"
	c.Inbox.Gmail.CredentialsPath = "credentials.json"
	c.Inbox.Gmail.TokenPath = "token.json"
	c.Inbox.Gmail.MaxRows = 50
	c.Inbox.Gmail.Label = "JobMail/OA"
	c.Inbox.Gmail.PollSeconds = 30
	c.Scan.StaggerMS = 100
	c.Scan.DebounceMS = 1000
	c.Scan.PollSeconds = 120
	c.AI.Provider = "none"
	c.AI.TimeoutSeconds = 30
	c.AI.ExcerptChars = 1000
	c.Classifier.Keywords = classify.DefaultKeywords()
	return c
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets the environment (or a .env file) override connection details.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("JOBMAIL_INBOX_PROVIDER")); v != "" {
		cfg.Inbox.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBMAIL_IMAP_USERNAME")); v != "" {
		cfg.Inbox.IMAP.Username = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBMAIL_AI_PROVIDER")); v != "" {
		cfg.AI.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("JOBMAIL_AI_MODEL")); v != "" {
		cfg.AI.Model = v
	}
}

func (c Config) Stagger() time.Duration {
	return time.Duration(c.Scan.StaggerMS) * time.Millisecond
}

func (c Config) Debounce() time.Duration {
	return time.Duration(c.Scan.DebounceMS) * time.Millisecond
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Scan.PollSeconds) * time.Second
}

func (c Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}
