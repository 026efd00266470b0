// File: internal/services/chat/cancel.go
package chat

import (
	"context"
	"sync"
)

// inflight tracks the cancel function of the one stream allowed per
// conversation.
type inflight struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newInflight() *inflight {
	return &inflight{cancels: make(map[string]context.CancelFunc)}
}

// begin claims the slot for id. It returns false when a stream already holds it.
func (f *inflight) begin(id string, cancel context.CancelFunc) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.cancels[id]; busy {
		return false
	}
	f.cancels[id] = cancel
	return true
}

// end releases the slot and cancels its context so nothing leaks.
func (f *inflight) end(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cancel, ok := f.cancels[id]; ok {
		cancel()
		delete(f.cancels, id)
	}
}

// cancel stops the stream for id, if any. The slot is released by end.
func (f *inflight) cancel(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cancel, ok := f.cancels[id]
	if ok {
		cancel()
	}
	return ok
}

func (f *inflight) active(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.cancels[id]
	return ok
}
