// File: internal/services/conversation/config.go
package conversation

import (
	"fmt"
	"time"
)

type Config struct {
	TitleMaxLength int           // Runes kept when deriving a title from the first user message
	MaxTitleLength int           // Upper bound for explicitly set titles
	RecentLimit    int           // Default size of the recent conversations list
	StorageTimeout time.Duration // Bound on each read-modify-write cycle
}

func (c *Config) Validate() error {
	if c.TitleMaxLength <= 0 {
		return fmt.Errorf("title_max_length must be positive")
	}
	if c.MaxTitleLength < c.TitleMaxLength+len(titleEllipsis) {
		return fmt.Errorf("max_title_length must fit a derived title")
	}
	if c.RecentLimit <= 0 {
		return fmt.Errorf("recent_limit must be positive")
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("storage_timeout must be positive")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		TitleMaxLength: 50,
		MaxTitleLength: 200,
		RecentLimit:    10,
		StorageTimeout: 10 * time.Second,
	}
}
