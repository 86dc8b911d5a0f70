// Package session assembles and runs an interactive hutch session:
// banner, load sequence, object registry, override pipeline, summary
// file and the run loop.
package session

import (
	"log/slog"

	"github.com/tangkong/hutch-python/device"
)

// Cache collects objects during the load sequence. Load steps add
// under their own names or aliases; duplicates are logged and dropped
// so no step can shadow an earlier one. The sealed Registry is built
// once assembly finishes.
type Cache struct {
	builder *device.Builder
	logger  *slog.Logger
}

// NewCache creates an empty load cache
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{builder: device.NewBuilder(), logger: logger}
}

// Add caches objects under their own names. Returns how many were
// actually added.
func (c *Cache) Add(objs ...device.Object) int {
	added := 0
	for _, obj := range objs {
		if obj == nil {
			continue
		}
		if err := c.builder.Add(obj); err != nil {
			c.logger.Warn("Skipping duplicate object name", "name", obj.Name(), "error", err)
			continue
		}
		added++
	}
	return added
}

// AddNamed caches one object under an explicit alias
func (c *Cache) AddNamed(name string, obj device.Object) bool {
	if err := c.builder.AddNamed(name, obj); err != nil {
		c.logger.Warn("Skipping duplicate object name", "name", name, "error", err)
		return false
	}
	return true
}

// Doc attaches a description to a cached name
func (c *Cache) Doc(name, doc string) {
	c.builder.Doc(name, doc)
}

// Builder exposes the underlying builder for script hosts
func (c *Cache) Builder() *device.Builder {
	return c.builder
}

// Len returns the number of cached objects
func (c *Cache) Len() int {
	return len(c.builder.Objects())
}

// Build seals the cache into the immutable session registry
func (c *Cache) Build() *device.Registry {
	return c.builder.Build()
}
