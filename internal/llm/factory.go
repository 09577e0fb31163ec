package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"fitcoach/internal/config"
)

// NewClientFromConfig builds the provider client named by the config.
func NewClientFromConfig(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "anthropic", "":
		ac := DefaultAnthropicConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			ac.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			ac.Model = cfg.Model
		}
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			ac.Timeout = d
		}
		return NewAnthropicClientWithConfig(ac, logger), nil

	case "gemini":
		return NewGeminiClient(cfg.APIKey, cfg.Model, logger)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid: anthropic, gemini)", cfg.Provider)
	}
}
