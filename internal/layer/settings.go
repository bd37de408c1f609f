package layer

import (
	"math"

	"elevgrid/internal/cache"
)

// NoDataPolicy decides what happens to samples still marked NoData once a
// layer's grid is final.
type NoDataPolicy int

const (
	// NoDataInterpolate leaves the sentinel in place for downstream layers to
	// fill.
	NoDataInterpolate NoDataPolicy = iota
	// NoDataMSL resolves missing samples to zero relative to mean sea level.
	NoDataMSL
)

// Settings is the per-source configuration of an elevation layer.
type Settings struct {
	Name string

	// Offset layers add onto a resolved base height instead of replacing it.
	Offset bool

	NoDataPolicy NoDataPolicy

	// NoDataValue is the source's own sentinel, normalized to the common
	// marker before caching.
	NoDataValue float32
	MinValid    float32
	MaxValid    float32

	Enabled bool
	Visible bool

	// MinLevel and MaxLevel bound the legal tile levels. MaxLevel < 0 means
	// unbounded above.
	MinLevel int
	MaxLevel int

	CachePolicy cache.Policy
}

// DefaultSettings returns an enabled, visible base layer accepting the full
// float range.
func DefaultSettings(name string) Settings {
	return Settings{
		Name:        name,
		NoDataValue: -32768,
		MinValid:    -float32(math.MaxFloat32),
		MaxValid:    float32(math.MaxFloat32),
		Enabled:     true,
		Visible:     true,
		MinLevel:    0,
		MaxLevel:    -1,
	}
}

// InLegalRange reports whether a tile level falls inside the configured
// window.
func (s Settings) InLegalRange(level int) bool {
	if level < s.MinLevel {
		return false
	}
	if s.MaxLevel >= 0 && level > s.MaxLevel {
		return false
	}
	return true
}
