// File: internal/services/attachment/handles.go
package attachment

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
)

// Blob is the payload behind a display handle.
type Blob struct {
	MimeType string
	Data     []byte
}

// HandleCache issues short-lived, process-local handles for attachment
// bytes. Handles are never persisted and vanish on restart or expiry.
type HandleCache struct {
	c       *ristretto.Cache[string, Blob]
	ttl     time.Duration
	maxCost int64
}

// NewHandleCache creates a cache holding at most maxCostBytes of payload.
func NewHandleCache(maxCostBytes int64, ttl time.Duration) (*HandleCache, error) {
	if maxCostBytes <= 0 {
		return nil, fmt.Errorf("handle cache size must be positive")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("handle ttl must be positive")
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, Blob]{
		NumCounters:        maxCostBytes / 1000 * 10,
		MaxCost:            maxCostBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create handle cache: %w", err)
	}
	return &HandleCache{c: c, ttl: ttl, maxCost: maxCostBytes}, nil
}

// Issue stores blob under a fresh handle.
func (h *HandleCache) Issue(blob Blob) (string, error) {
	cost := int64(len(blob.Data)) + 1
	if cost > h.maxCost {
		return "", fmt.Errorf("blob of %d bytes exceeds the display cache", len(blob.Data))
	}

	handle := uuid.New().String()
	if !h.c.SetWithTTL(handle, blob, cost, h.ttl) {
		return "", fmt.Errorf("display handle rejected by cache")
	}
	// Sets are buffered; wait so the handle resolves immediately.
	h.c.Wait()
	return handle, nil
}

// Resolve returns the blob behind handle if it is still live.
func (h *HandleCache) Resolve(handle string) (Blob, bool) {
	return h.c.Get(handle)
}

// Revoke drops a handle before its expiry.
func (h *HandleCache) Revoke(handle string) {
	h.c.Del(handle)
}

// Close shuts down the cache and releases resources.
func (h *HandleCache) Close() {
	h.c.Close()
}
