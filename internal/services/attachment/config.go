// File: internal/services/attachment/config.go
package attachment

import (
	"fmt"
	"time"
)

type Config struct {
	// Thumbnail Configuration
	ThumbnailMaxDimension int // Longest side of a thumbnail in pixels
	ThumbnailQuality      int // JPEG quality, 1-100
	MaxImagePixels        int // Decoded images above this size are rejected

	// Upload limits
	MaxFileSize int64

	// Display handles
	HandleTTL        time.Duration
	HandleCacheBytes int64

	StorageTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.ThumbnailMaxDimension <= 0 {
		return fmt.Errorf("thumbnail_max_dimension must be positive")
	}
	if c.ThumbnailQuality < 1 || c.ThumbnailQuality > 100 {
		return fmt.Errorf("thumbnail_quality must be between 1 and 100")
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("max_image_pixels must be positive")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive")
	}
	if c.HandleTTL <= 0 {
		return fmt.Errorf("handle_ttl must be positive")
	}
	if c.HandleCacheBytes <= 0 {
		return fmt.Errorf("handle_cache_bytes must be positive")
	}
	if c.StorageTimeout <= 0 {
		return fmt.Errorf("storage_timeout must be positive")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		ThumbnailMaxDimension: 200,
		ThumbnailQuality:      80,
		MaxImagePixels:        50_000_000,
		MaxFileSize:           25 << 20,
		HandleTTL:             10 * time.Minute,
		HandleCacheBytes:      64 << 20,
		StorageTimeout:        30 * time.Second,
	}
}
