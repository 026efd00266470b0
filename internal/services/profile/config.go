// File: internal/services/profile/config.go
package profile

import (
	"fmt"
	"time"
)

type Config struct {
	MaxNameLength    int
	MaxContextLength int
	StorageTimeout   time.Duration
}

func (c *Config) Validate() error {
	if c.MaxNameLength <= 0 {
		return fmt.Errorf("max_name_length must be positive")
	}
	if c.MaxContextLength <= 0 {
		return fmt.Errorf("max_context_length must be positive")
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("storage_timeout must be positive")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		MaxNameLength:    100,
		MaxContextLength: 4000,
		StorageTimeout:   5 * time.Second,
	}
}
