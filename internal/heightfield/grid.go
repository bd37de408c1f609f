// Package heightfield holds the elevation grid model: dense height arrays
// tagged with an extent, their normal maps, and the sampling and normal
// synthesis routines the layer resolvers build on.
package heightfield

import (
	"math"

	"elevgrid/internal/geo"
)

// NoData marks an absent or invalid elevation sample.
const NoData = float32(-math.MaxFloat32)

const (
	// MinGridSize and MaxGridSize bound legal grid dimensions. Grids outside
	// these bounds are rejected as malformed.
	MinGridSize = 2
	MaxGridSize = 1024
)

// Grid is a dense width x height array of elevation samples in row-major
// order, row 0 at the southern edge. Origin and spacing are populated from
// the tile extent once the grid is finalized.
type Grid struct {
	W, H    int
	Heights []float32

	OriginX, OriginY float64
	DX, DY           float64
}

// New allocates a grid with all heights at zero.
func New(w, h int) *Grid {
	return &Grid{W: w, H: h, Heights: make([]float32, w*h)}
}

// NewNoData allocates a grid with every sample set to NoData.
func NewNoData(w, h int) *Grid {
	g := New(w, h)
	for i := range g.Heights {
		g.Heights[i] = NoData
	}
	return g
}

// Valid performs the structural sanity check every grid must pass before it
// is returned to a caller or accepted from a cache.
func (g *Grid) Valid() bool {
	if g == nil {
		return false
	}
	if g.W < MinGridSize || g.W > MaxGridSize {
		return false
	}
	if g.H < MinGridSize || g.H > MaxGridSize {
		return false
	}
	return len(g.Heights) == g.W*g.H
}

// At returns the height at column c, row t.
func (g *Grid) At(c, t int) float32 {
	return g.Heights[t*g.W+c]
}

// Set writes the height at column c, row t.
func (g *Grid) Set(c, t int, v float32) {
	g.Heights[t*g.W+c] = v
}

// SetExtent derives the grid's origin and sample spacing from a tile extent.
// The last column and row sit exactly on the extent's far edge.
func (g *Grid) SetExtent(ext geo.Extent) {
	g.OriginX = ext.XMin
	g.OriginY = ext.YMin
	g.DX = ext.Width() / float64(g.W-1)
	g.DY = ext.Height() / float64(g.H-1)
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	cp := *g
	cp.Heights = make([]float32, len(g.Heights))
	copy(cp.Heights, g.Heights)
	return &cp
}

// Normalizer replaces invalid samples with the NoData marker: NaNs, values
// equal to the source's own sentinel, and values outside the valid range.
// Applying it twice is a no-op.
type Normalizer struct {
	Sentinel float32
	MinValid float32
	MaxValid float32
}

func (n Normalizer) Apply(g *Grid) {
	if g == nil {
		return
	}
	for i, v := range g.Heights {
		if v == NoData {
			continue
		}
		if math.IsNaN(float64(v)) || v == n.Sentinel || v < n.MinValid || v > n.MaxValid {
			g.Heights[i] = NoData
		}
	}
}

// ResolveInvalidToMSL rewrites NoData samples to zero relative to mean sea
// level. With a geoid, sea level sits at the geoid undulation above the
// ellipsoid; without one, sea level is height zero.
func ResolveInvalidToMSL(g *Grid, ext geo.Extent, kind geo.SRSKind, geoid *geo.Geoid) {
	if g == nil {
		return
	}
	dx := ext.Width() / float64(g.W-1)
	dy := ext.Height() / float64(g.H-1)
	for t := 0; t < g.H; t++ {
		for c := 0; c < g.W; c++ {
			if g.At(c, t) != NoData {
				continue
			}
			var h float32
			if geoid != nil {
				lon, lat := geo.ToGeographic(ext.XMin+dx*float64(c), ext.YMin+dy*float64(t), kind)
				h = float32(geoid.Offset(lat, lon))
			}
			g.Set(c, t, h)
		}
	}
}

// TransformDatum shifts every valid sample from one vertical datum to
// another, in place. The extent locates each sample so the geoid undulation
// can vary across the grid.
func TransformDatum(from, to geo.VDatum, ext geo.Extent, kind geo.SRSKind, g *Grid) {
	if from.Equivalent(to) || g == nil {
		return
	}
	dx := ext.Width() / float64(g.W-1)
	dy := ext.Height() / float64(g.H-1)
	for t := 0; t < g.H; t++ {
		for c := 0; c < g.W; c++ {
			v := g.At(c, t)
			if v == NoData {
				continue
			}
			lon, lat := geo.ToGeographic(ext.XMin+dx*float64(c), ext.YMin+dy*float64(t), kind)
			g.Set(c, t, v+float32(geo.DatumShift(from, to, lat, lon)))
		}
	}
}
