// Package config holds all fitcoach configuration: YAML file on disk with
// environment-variable overrides applied on top.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all fitcoach configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration (completion service used by the router and responders)
	LLM LLMConfig `yaml:"llm"`

	// Conversation memory configuration
	Memory MemoryConfig `yaml:"memory"`

	// Routing configuration
	Router RouterConfig `yaml:"router"`

	// Backing store configuration
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the completion-service client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // anthropic, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// RouterConfig configures the supervisor.
type RouterConfig struct {
	// Timeout for the classification LLM call. On expiry the keyword
	// fallback runs immediately.
	ClassifyTimeout string `yaml:"classify_timeout"`

	// Maximum routing decisions per inbound message before forced finish.
	HopCap int `yaml:"hop_cap"`

	// Path to the declarative lexicon YAML. Empty means built-in lexicon.
	LexiconPath string `yaml:"lexicon_path"`

	// Watch the lexicon file and reload on change.
	WatchLexicon bool `yaml:"watch_lexicon"`
}

// StoreConfig configures the SQLite backing store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`

	// Sessions idle past this duration are deactivated by the reaper.
	SessionIdleTimeout string `yaml:"session_idle_timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "fitcoach",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider: "anthropic",
			Model:    "claude-sonnet-4-20250514",
			BaseURL:  "https://api.anthropic.com/v1",
			Timeout:  "120s",
		},

		Memory: DefaultMemoryConfig(),

		Router: RouterConfig{
			ClassifyTimeout: "10s",
			HopCap:          10,
			WatchLexicon:    false,
		},

		Store: StoreConfig{
			DatabasePath:       "data/fitcoach.db",
			SessionIdleTimeout: "168h", // 7 days
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that must hold at startup. An invalid memory
// mode is the only fatal configuration error in this core.
func (c *Config) Validate() error {
	if _, err := ParseMode(string(c.Memory.Mode)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// applyEnvOverrides layers environment variables over the file config.
// Precedence within each concern: later entries win.
func (c *Config) applyEnvOverrides() {
	// LLM provider keys. GEMINI takes precedence over ANTHROPIC when both
	// are set, matching factory detection order.
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if model := os.Getenv("FITCOACH_MODEL"); model != "" {
		c.LLM.Model = model
	}

	if mode := os.Getenv("MEMORY_MODE"); mode != "" {
		c.Memory.Mode = Mode(mode)
	}
	if path := os.Getenv("FITCOACH_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if level := os.Getenv("FITCOACH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// SessionIdleTimeout parses the idle threshold with a safe default.
func (c *Config) SessionIdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Store.SessionIdleTimeout)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}
