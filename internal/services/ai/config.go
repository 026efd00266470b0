// File: internal/services/ai/config.go
package ai

import (
	"fmt"
	"time"
)

type Config struct {
	// LLM Configuration
	BaseURL string // OpenAI-compatible endpoint of the provider
	Model   string

	// Token budgets
	MaxTokens           int // Streaming replies
	TitleMaxTokens      int // Generated titles
	ValidationMaxTokens int // Credential probe

	// Performance Configuration
	Timeout           time.Duration // Whole streaming request
	TitleTimeout      time.Duration
	ValidationTimeout time.Duration
	MaxRetries        int
	RetryDelay        time.Duration

	// Title Configuration
	TitleMaxLength int
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("LLM_MODEL is required")
	}
	if c.MaxTokens <= 0 || c.TitleMaxTokens <= 0 || c.ValidationMaxTokens <= 0 {
		return fmt.Errorf("token budgets must be positive")
	}
	if c.Timeout <= 0 || c.TitleTimeout <= 0 || c.ValidationTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.TitleMaxLength <= 0 {
		return fmt.Errorf("title max length must be positive")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:             "https://api.anthropic.com/v1/",
		Model:               "claude-sonnet-4-20250514",
		MaxTokens:           4096,
		TitleMaxTokens:      30,
		ValidationMaxTokens: 10,
		Timeout:             5 * time.Minute,
		TitleTimeout:        30 * time.Second,
		ValidationTimeout:   30 * time.Second,
		MaxRetries:          3,
		RetryDelay:          time.Second,
		TitleMaxLength:      50,
	}
}
