package cache

import (
	"sync"
	"time"

	"elevgrid/internal/heightfield"
)

// MemoryTier is a size-bounded in-memory cache. Reads refresh an entry's
// recency; when the bound is reached the stalest entry is evicted.
type MemoryTier struct {
	mu      sync.Mutex
	max     int
	tick    uint64
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	grid     *heightfield.Grid
	modified time.Time
	lastUsed uint64
}

// NewMemoryTier creates a memory tier holding at most max entries. A max of
// zero or less falls back to a sensible default.
func NewMemoryTier(max int) *MemoryTier {
	if max <= 0 {
		max = 128
	}
	return &MemoryTier{
		max:     max,
		entries: make(map[string]*memoryEntry),
	}
}

func (m *MemoryTier) Read(key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	m.tick++
	e.lastUsed = m.tick
	return Entry{Grid: e.grid.Clone(), LastModified: e.modified}, true, nil
}

func (m *MemoryTier) Write(key string, g *heightfield.Grid, modified time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tick++
	if e, ok := m.entries[key]; ok {
		e.grid = g.Clone()
		e.modified = modified
		e.lastUsed = m.tick
		return nil
	}
	if len(m.entries) >= m.max {
		m.evictStalest()
	}
	m.entries[key] = &memoryEntry{grid: g.Clone(), modified: modified, lastUsed: m.tick}
	return nil
}

// Len returns the current entry count.
func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryTier) evictStalest() {
	var victim string
	var oldest uint64
	first := true
	for k, e := range m.entries {
		if first || e.lastUsed < oldest {
			victim = k
			oldest = e.lastUsed
			first = false
		}
	}
	if !first {
		delete(m.entries, victim)
	}
}
