package application

import (
	"sort"
	"sync"
	"time"
)

// staleClasses remembers classes whose total_sessions could not be written
// so a later pass can retry them. When more than maxEntries classes are
// stale the set overflows and callers should resync everything.
type staleClasses struct {
	mu         sync.Mutex
	now        func() time.Time
	maxEntries int
	entries    map[string]staleEntry
	overflow   bool
}

type staleEntry struct {
	since    time.Time
	failures int
}

func newStaleClasses(maxEntries int, now func() time.Time) *staleClasses {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if now == nil {
		now = time.Now
	}
	return &staleClasses{
		now:        now,
		maxEntries: maxEntries,
		entries:    make(map[string]staleEntry),
	}
}

// Mark records a failed resync of classID.
func (c *staleClasses) Mark(classID string) {
	if c == nil || classID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[classID]
	if !ok {
		if len(c.entries) >= c.maxEntries {
			c.overflow = true
			return
		}
		entry.since = c.now()
	}
	entry.failures++
	c.entries[classID] = entry
}

// Clear forgets classID after a successful resync.
func (c *staleClasses) Clear(classID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, classID)
	c.mu.Unlock()
}

// Reset forgets every entry, including the overflow flag.
func (c *staleClasses) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]staleEntry)
	c.overflow = false
	c.mu.Unlock()
}

// Snapshot returns the stale class IDs, oldest failure first, and whether
// the set overflowed.
func (c *staleClasses) Snapshot() ([]string, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := c.entries[ids[i]], c.entries[ids[j]]
		if a.since.Equal(b.since) {
			return ids[i] < ids[j]
		}
		return a.since.Before(b.since)
	})
	return ids, c.overflow
}

// Failures reports how many consecutive resyncs of classID failed.
func (c *staleClasses) Failures(classID string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[classID].failures
}
