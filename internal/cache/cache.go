// Package cache provides the two storage tiers backing elevation tile reuse:
// a process-lifetime in-memory tier and a persistent append-only disk tier.
// Both implement the same read/write contract keyed by stable strings.
package cache

import (
	"time"

	"elevgrid/internal/heightfield"
)

// Entry is a cached grid plus the time it was written, used for expiry.
type Entry struct {
	Grid         *heightfield.Grid
	LastModified time.Time
}

// Tier is the storage contract shared by the memory and persistent tiers.
// Implementations must be safe for concurrent use; keys are independent.
type Tier interface {
	Read(key string) (Entry, bool, error)
	Write(key string, g *heightfield.Grid, modified time.Time) error
}

// Usage selects which cache operations a layer may perform.
type Usage int

const (
	UsageReadWrite Usage = iota
	UsageReadOnly
	// UsageCacheOnly serves exclusively from cache and never contacts the
	// source.
	UsageCacheOnly
	UsageNone
)

// Policy couples a usage mode with an entry lifetime. A zero MaxAge never
// expires.
type Policy struct {
	Usage  Usage
	MaxAge time.Duration
}

func (p Policy) Readable() bool  { return p.Usage != UsageNone }
func (p Policy) Writeable() bool { return p.Usage == UsageReadWrite }
func (p Policy) CacheOnly() bool { return p.Usage == UsageCacheOnly }

// Expired reports whether an entry written at modified is past the policy's
// maximum age at time now.
func (p Policy) Expired(modified, now time.Time) bool {
	if p.MaxAge <= 0 {
		return false
	}
	return now.Sub(modified) > p.MaxAge
}
