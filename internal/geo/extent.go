package geo

import "fmt"

// Extent is an axis-aligned geographic bounding rectangle expressed in the
// units of its owning profile (degrees or meters).
type Extent struct {
	XMin, YMin, XMax, YMax float64
}

func (e Extent) Width() float64  { return e.XMax - e.XMin }
func (e Extent) Height() float64 { return e.YMax - e.YMin }

func (e Extent) Valid() bool {
	return e.XMax > e.XMin && e.YMax > e.YMin
}

// Contains reports whether the point (x, y) falls inside the extent,
// boundaries included.
func (e Extent) Contains(x, y float64) bool {
	return x >= e.XMin && x <= e.XMax && y >= e.YMin && y <= e.YMax
}

// Intersects reports whether two extents overlap. Touching edges count as an
// intersection so adjacent tiles share their border samples.
func (e Extent) Intersects(o Extent) bool {
	return e.XMin <= o.XMax && e.XMax >= o.XMin && e.YMin <= o.YMax && e.YMax >= o.YMin
}

// Intersection clips e to o. The result may be invalid when the extents do
// not overlap.
func (e Extent) Intersection(o Extent) Extent {
	return Extent{
		XMin: maxf(e.XMin, o.XMin),
		YMin: maxf(e.YMin, o.YMin),
		XMax: minf(e.XMax, o.XMax),
		YMax: minf(e.YMax, o.YMax),
	}
}

func (e Extent) String() string {
	return fmt.Sprintf("[%g,%g => %g,%g]", e.XMin, e.YMin, e.XMax, e.YMax)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
