package pipeline

import (
	"sync"

	"eventengine/internal/metrics"
)

// TypeCache tracks which event types have been seen since startup. It is
// process-wide, never cleared, and bounded by distinct-type cardinality.
type TypeCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewTypeCache creates an empty cache.
func NewTypeCache() *TypeCache {
	return &TypeCache{seen: make(map[string]struct{})}
}

// Observe records an event type and reports whether it is new.
func (c *TypeCache) Observe(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[eventType]; ok {
		return false
	}
	c.seen[eventType] = struct{}{}
	metrics.DistinctEventTypes.Set(float64(len(c.seen)))
	return true
}
