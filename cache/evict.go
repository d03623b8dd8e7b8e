package cache

import "time"

// evictLocked removes expired entries and, if still over maxEntries, the
// least-recently-touched entries until within bounds. Callers must hold
// c.mu. Eviction only ever touches committed entries — an in-flight
// staging buffer is never a candidate, so eviction cannot race a commit.
func (c *Cache) evictLocked() {
	now := time.Now()
	for key, e := range c.entries {
		if now.Sub(e.committedAt) > c.maxAge {
			delete(c.entries, key)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}
	type kv struct {
		key  string
		seen time.Time
	}
	ordered := make([]kv, 0, len(c.entries))
	for key, e := range c.entries {
		ordered = append(ordered, kv{key, e.lastTouch})
	}
	// Simple selection of the oldest len(entries)-maxEntries items; the
	// cache is bounded by design so this stays small in practice.
	for len(c.entries) > c.maxEntries {
		oldestIdx := 0
		for i := 1; i < len(ordered); i++ {
			if ordered[i].seen.Before(ordered[oldestIdx].seen) {
				oldestIdx = i
			}
		}
		delete(c.entries, ordered[oldestIdx].key)
		ordered = append(ordered[:oldestIdx], ordered[oldestIdx+1:]...)
	}
}
