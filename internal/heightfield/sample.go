package heightfield

import (
	"math"

	"elevgrid/internal/geo"
)

// Interpolation selects how ElevationAt blends neighboring samples.
type Interpolation int

const (
	Bilinear Interpolation = iota
	Nearest
)

// GeoGrid couples a grid with the extent it covers, which is what the
// compositor samples against.
type GeoGrid struct {
	Grid   *Grid
	Extent geo.Extent
}

// Valid reports whether the grid exists, passes structural validation, and
// has a usable extent.
func (gg *GeoGrid) Valid() bool {
	return gg != nil && gg.Grid.Valid() && gg.Extent.Valid()
}

// Resolution is the sample spacing along x in extent units. Smaller is finer.
func (gg *GeoGrid) Resolution() float64 {
	return gg.Extent.Width() / float64(gg.Grid.W-1)
}

// ElevationAt samples the grid at a geographic point. ok is false when the
// point lies outside the extent. Inside the extent the result may still be
// NoData when the contributing samples are invalid; a bilinear blend with any
// NoData corner collapses to NoData rather than inventing a height.
func (gg *GeoGrid) ElevationAt(x, y float64, interp Interpolation) (float32, bool) {
	if !gg.Extent.Contains(x, y) {
		return NoData, false
	}
	g := gg.Grid
	fx := (x - gg.Extent.XMin) / gg.Extent.Width() * float64(g.W-1)
	fy := (y - gg.Extent.YMin) / gg.Extent.Height() * float64(g.H-1)

	if interp == Nearest {
		c := clampIndex(int(math.Round(fx)), g.W)
		t := clampIndex(int(math.Round(fy)), g.H)
		return g.At(c, t), true
	}

	c0 := clampIndex(int(math.Floor(fx)), g.W)
	t0 := clampIndex(int(math.Floor(fy)), g.H)
	c1 := clampIndex(c0+1, g.W)
	t1 := clampIndex(t0+1, g.H)

	ax := float32(fx - float64(c0))
	ay := float32(fy - float64(t0))

	// Corners with zero weight cannot poison an on-lattice sample.
	var sum, wsum float32
	corners := [4]struct {
		h float32
		w float32
	}{
		{g.At(c0, t0), (1 - ax) * (1 - ay)},
		{g.At(c1, t0), ax * (1 - ay)},
		{g.At(c0, t1), (1 - ax) * ay},
		{g.At(c1, t1), ax * ay},
	}
	for _, corner := range corners {
		if corner.w == 0 {
			continue
		}
		if corner.h == NoData {
			return NoData, true
		}
		sum += corner.h * corner.w
		wsum += corner.w
	}
	if wsum == 0 {
		return NoData, true
	}
	return sum / wsum, true
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
