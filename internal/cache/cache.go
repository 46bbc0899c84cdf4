// Package cache holds rendered query responses between polling cycles.
package cache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/coocood/freecache"
)

// Cache stores encoded responses by key
type Cache interface {
	Get(key string) ([]byte, bool)
	// Set stores value under key; an entry too large for the cache is rejected
	Set(key string, value []byte) error
	// Clear drops every entry; called when a polling cycle writes new data
	Clear()
}

// Config controls the response cache
type Config struct {
	Enabled bool
	SizeMB  int
	TTL     time.Duration
}

// MaxEntryBytes is the largest key plus value freecache accepts for a cache
// of sizeMB: a quarter of one of its 256 segments, less the entry header
func MaxEntryBytes(sizeMB int) int {
	return sizeMB*1024*1024/1024 - freecache.ENTRY_HDR_SIZE
}

// Freecache is a size-bounded cache backed by freecache
type Freecache struct {
	cache    *freecache.Cache
	ttl      int
	maxEntry int
	logger   *slog.Logger
}

// New returns a freecache-backed Cache, or a no-op one when disabled
func New(cfg Config, logger *slog.Logger) Cache {
	if !cfg.Enabled || cfg.SizeMB <= 0 {
		logger.Info("response cache disabled")
		return Noop()
	}

	ttl := max(int(cfg.TTL.Seconds()), 1)
	maxEntry := MaxEntryBytes(cfg.SizeMB)
	logger.Info("response cache initialized",
		slog.Int("size_mb", cfg.SizeMB),
		slog.Int("ttl_seconds", ttl),
		slog.Int("max_entry_bytes", maxEntry),
	)

	return &Freecache{
		cache:    freecache.NewCache(cfg.SizeMB * 1024 * 1024),
		ttl:      ttl,
		maxEntry: maxEntry,
		logger:   logger.With(slog.String("component", "cache")),
	}
}

func (c *Freecache) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *Freecache) Set(key string, value []byte) error {
	if err := c.cache.Set([]byte(key), value, c.ttl); err != nil {
		c.logger.Warn("response not cached",
			slog.String("key", key),
			slog.Int("size", len(value)),
			slog.Int("max_entry_bytes", c.maxEntry),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("cache %s (%d bytes): %w", key, len(value), err)
	}
	return nil
}

func (c *Freecache) Clear() {
	c.cache.Clear()
}

type noopCache struct{}

// Noop returns a Cache that never stores anything
func Noop() Cache {
	return noopCache{}
}

func (noopCache) Get(string) ([]byte, bool) { return nil, false }
func (noopCache) Set(string, []byte) error  { return nil }
func (noopCache) Clear()                    {}
