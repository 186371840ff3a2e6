// Package cache provides an on-disk snapshot cache with a freshness TTL.
// Each entry is a data file plus a sidecar timestamp file; a stale,
// missing or unreadable entry is simply a miss.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Cache stores snapshot payloads under a directory with per-entry
// timestamps.
type Cache struct {
	logger zerolog.Logger
	dir    string
	ttl    time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Cache rooted at dir. Entries older than ttl are treated
// as misses.
func New(logger zerolog.Logger, dir string, ttl time.Duration) *Cache {
	return &Cache{
		logger: logger,
		dir:    dir,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Load returns the cached payload for name if it exists and is fresh.
func (c *Cache) Load(name string) ([]byte, bool) {
	stampRaw, err := os.ReadFile(c.stampPath(name))
	if err != nil {
		return nil, false
	}
	stamp, err := time.Parse(time.RFC3339, string(stampRaw))
	if err != nil {
		c.logger.Warn().Str("entry", name).Err(err).Msg("unreadable cache timestamp")
		return nil, false
	}
	if c.now().Sub(stamp) >= c.ttl {
		return nil, false
	}

	data, err := os.ReadFile(c.dataPath(name))
	if err != nil {
		return nil, false
	}
	c.logger.Info().Str("entry", name).Time("cached_at", stamp).Msg("using cached snapshot")
	return data, true
}

// Store writes the payload and refreshes its timestamp. Writes go through
// a temp file and rename so a partial write never poisons the entry.
func (c *Cache) Store(name string, data []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := writeAtomic(c.dataPath(name), data); err != nil {
		return fmt.Errorf("write cache entry %s: %w", name, err)
	}
	stamp := c.now().UTC().Format(time.RFC3339)
	if err := writeAtomic(c.stampPath(name), []byte(stamp)); err != nil {
		return fmt.Errorf("write cache timestamp %s: %w", name, err)
	}
	return nil
}

func (c *Cache) dataPath(name string) string {
	return filepath.Join(c.dir, name)
}

func (c *Cache) stampPath(name string) string {
	return filepath.Join(c.dir, name+".stamp")
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
