package geo

import "fmt"

// TileAddress is a quadtree coordinate (level, x, y) within a profile's tile
// grid. The zero value is invalid.
type TileAddress struct {
	Level   int
	X, Y    int
	Profile *Profile
}

// Valid reports whether the address names a real tile of its profile.
func (a TileAddress) Valid() bool {
	if a.Profile == nil || a.Level < 0 {
		return false
	}
	nx, ny := a.Profile.TilesAtLevel(a.Level)
	return a.X >= 0 && a.X < nx && a.Y >= 0 && a.Y < ny
}

// String renders the address as "level/x/y". The string participates in
// cache keys and must stay stable.
func (a TileAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Level, a.X, a.Y)
}

// Extent returns the geographic rectangle the tile covers.
func (a TileAddress) Extent() Extent {
	return a.Profile.TileExtent(a.Level, a.X, a.Y)
}

// Parent returns the address one level up. At level 0 the result is invalid,
// terminating parent walk-ups.
func (a TileAddress) Parent() TileAddress {
	if a.Level <= 0 {
		return TileAddress{Level: -1, Profile: a.Profile}
	}
	return TileAddress{Level: a.Level - 1, X: a.X / 2, Y: a.Y / 2, Profile: a.Profile}
}

// AncestorAt returns the ancestor address at the given level, or the address
// itself when level is not above it.
func (a TileAddress) AncestorAt(level int) TileAddress {
	out := a
	for out.Level > level && out.Valid() {
		out = out.Parent()
	}
	return out
}

// MapResolution adjusts the address for a source whose tiles carry fewer
// samples than the requested grid. A source with smaller tiles needs a lower
// level to supply the same ground resolution; walking up one level per
// halving keeps the sample spacing equivalent.
func (a TileAddress) MapResolution(gridSize, sourceTileSize int) TileAddress {
	if a.Level == 0 || gridSize >= sourceTileSize {
		return a
	}
	level := a.Level
	size := nearestPowerOf2(gridSize)
	for level > 0 && size < sourceTileSize {
		size *= 2
		level--
	}
	return a.AncestorAt(level)
}

func nearestPowerOf2(v int) int {
	p := 1
	for p < v {
		p *= 2
	}
	if p == v {
		return p
	}
	if v-p/2 < p-v {
		return p / 2
	}
	return p
}
