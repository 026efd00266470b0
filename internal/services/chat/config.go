// File: internal/services/chat/config.go
package chat

import (
	"fmt"
	"time"
)

type Config struct {
	// Storage writes made on behalf of a turn
	StorageTimeout time.Duration

	// Background title generation after the first exchange
	TitleTimeout time.Duration

	// Upper bound on concurrent attachment lookups while building history
	AttachmentConcurrency int

	// Also delete the persisted empty placeholder when a stream fails
	DeletePlaceholderOnError bool
}

func (c *Config) Validate() error {
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("storage_timeout must be positive")
	}
	if c.TitleTimeout <= 0 {
		return fmt.Errorf("title_timeout must be positive")
	}
	if c.AttachmentConcurrency < 1 {
		return fmt.Errorf("attachment_concurrency must be at least 1")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		StorageTimeout:           10 * time.Second,
		TitleTimeout:             30 * time.Second,
		AttachmentConcurrency:    4,
		DeletePlaceholderOnError: false,
	}
}
