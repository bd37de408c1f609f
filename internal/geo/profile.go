package geo

import (
	"fmt"
	"math"
)

// SRSKind distinguishes angular from planar coordinate systems. Geographic
// profiles measure in degrees and need latitude-dependent spacing when
// deriving slopes from heights.
type SRSKind int

const (
	Geographic SRSKind = iota
	Projected
)

const (
	// EquatorialRadius is the WGS84 semi-major axis in meters.
	EquatorialRadius = 6378137.0

	mercatorLimit = math.Pi * EquatorialRadius
)

// Profile describes a quadtree tiling scheme: the world extent it covers, the
// number of tiles at level zero, the horizontal coordinate system kind, and
// the vertical datum heights are measured against.
type Profile struct {
	Name       string
	Kind       SRSKind
	Bounds     Extent
	BaseTilesX int
	BaseTilesY int
	Datum      VDatum
}

// GlobalGeodetic returns the standard WGS84 lat/lon profile with a 2x1 root
// tile arrangement.
func GlobalGeodetic() *Profile {
	return &Profile{
		Name:       "global-geodetic",
		Kind:       Geographic,
		Bounds:     Extent{XMin: -180, YMin: -90, XMax: 180, YMax: 90},
		BaseTilesX: 2,
		BaseTilesY: 1,
	}
}

// SphericalMercator returns the web-mercator profile with a single root tile.
func SphericalMercator() *Profile {
	return &Profile{
		Name:       "spherical-mercator",
		Kind:       Projected,
		Bounds:     Extent{XMin: -mercatorLimit, YMin: -mercatorLimit, XMax: mercatorLimit, YMax: mercatorLimit},
		BaseTilesX: 1,
		BaseTilesY: 1,
	}
}

// WithDatum returns a copy of the profile bound to the given vertical datum.
func (p *Profile) WithDatum(d VDatum) *Profile {
	cp := *p
	cp.Datum = d
	return &cp
}

// Signature identifies the horizontal tiling scheme only; two profiles with
// equal signatures tile the world identically even if their vertical datums
// differ.
func (p *Profile) Signature() string {
	return fmt.Sprintf("%s:%d:%dx%d", p.Name, p.Kind, p.BaseTilesX, p.BaseTilesY)
}

// FullSignature includes the vertical datum and is the signature used in
// cache keys, where a datum mismatch must miss.
func (p *Profile) FullSignature() string {
	return p.Signature() + ":" + p.Datum.Name()
}

// HorizEquivalentTo reports whether two profiles share a tiling scheme.
// Vertical datums are deliberately ignored.
func (p *Profile) HorizEquivalentTo(o *Profile) bool {
	if p == nil || o == nil {
		return false
	}
	return p.Signature() == o.Signature()
}

// TilesAtLevel returns the tile grid dimensions at a quadtree level.
func (p *Profile) TilesAtLevel(level int) (nx, ny int) {
	return p.BaseTilesX << uint(level), p.BaseTilesY << uint(level)
}

// TileExtent computes the extent of tile (x, y) at the given level. Row 0 is
// the northernmost row, matching the usual quadtree addressing.
func (p *Profile) TileExtent(level, x, y int) Extent {
	nx, ny := p.TilesAtLevel(level)
	tw := p.Bounds.Width() / float64(nx)
	th := p.Bounds.Height() / float64(ny)
	return Extent{
		XMin: p.Bounds.XMin + tw*float64(x),
		XMax: p.Bounds.XMin + tw*float64(x+1),
		YMax: p.Bounds.YMax - th*float64(y),
		YMin: p.Bounds.YMax - th*float64(y+1),
	}
}

// tileFraction is the portion of the world extent one tile covers at a level.
func (p *Profile) tileFraction(level int) float64 {
	nx, _ := p.TilesAtLevel(level)
	return 1.0 / float64(nx)
}

// EquivalentLevel finds the level in this profile whose tiles cover roughly
// the same fraction of the world as the other profile's tiles at the given
// level.
func (p *Profile) EquivalentLevel(other *Profile, level int) int {
	frac := other.tileFraction(level)
	lvl := int(math.Round(math.Log2(1.0 / (frac * float64(p.BaseTilesX)))))
	if lvl < 0 {
		lvl = 0
	}
	return lvl
}

// IntersectingTiles returns the addresses of this profile's tiles, at the
// level closest in resolution to addr's, whose extents overlap addr's extent.
// The foreign extent is reprojected when the coordinate systems differ.
func (p *Profile) IntersectingTiles(addr TileAddress) []TileAddress {
	ext := addr.Extent()
	if addr.Profile.Kind != p.Kind {
		ext = reproject(ext, addr.Profile.Kind, p.Kind)
	}
	ext = ext.Intersection(p.Bounds)
	if !ext.Valid() {
		return nil
	}

	level := p.EquivalentLevel(addr.Profile, addr.Level)
	nx, ny := p.TilesAtLevel(level)
	tw := p.Bounds.Width() / float64(nx)
	th := p.Bounds.Height() / float64(ny)

	x0 := clampi(int(math.Floor((ext.XMin-p.Bounds.XMin)/tw)), 0, nx-1)
	x1 := clampi(int(math.Ceil((ext.XMax-p.Bounds.XMin)/tw))-1, 0, nx-1)
	y0 := clampi(int(math.Floor((p.Bounds.YMax-ext.YMax)/th)), 0, ny-1)
	y1 := clampi(int(math.Ceil((p.Bounds.YMax-ext.YMin)/th))-1, 0, ny-1)

	var out []TileAddress
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			out = append(out, TileAddress{Level: level, X: x, Y: y, Profile: p})
		}
	}
	return out
}

// ToGeographic converts a point from a profile's native units to lon/lat
// degrees. Geographic points pass through unchanged.
func ToGeographic(x, y float64, kind SRSKind) (lon, lat float64) {
	if kind == Geographic {
		return x, y
	}
	return mercXToLon(x), mercYToLat(y)
}

// FromGeographic converts a lon/lat point into a profile's native units.
func FromGeographic(lon, lat float64, kind SRSKind) (x, y float64) {
	if kind == Geographic {
		return lon, lat
	}
	return lonToMercX(lon), latToMercY(lat)
}

// reproject converts an extent between lat/lon degrees and web-mercator
// meters by transforming its corners.
func reproject(e Extent, from, to SRSKind) Extent {
	if from == to {
		return e
	}
	if from == Geographic {
		return Extent{
			XMin: lonToMercX(e.XMin),
			XMax: lonToMercX(e.XMax),
			YMin: latToMercY(e.YMin),
			YMax: latToMercY(e.YMax),
		}
	}
	return Extent{
		XMin: mercXToLon(e.XMin),
		XMax: mercXToLon(e.XMax),
		YMin: mercYToLat(e.YMin),
		YMax: mercYToLat(e.YMax),
	}
}

func lonToMercX(lon float64) float64 {
	return EquatorialRadius * lon * math.Pi / 180.0
}

func latToMercY(lat float64) float64 {
	lat = math.Max(-85.051129, math.Min(85.051129, lat))
	rad := lat * math.Pi / 180.0
	return EquatorialRadius * math.Log(math.Tan(math.Pi/4.0+rad/2.0))
}

func mercXToLon(x float64) float64 {
	return x / EquatorialRadius * 180.0 / math.Pi
}

func mercYToLat(y float64) float64 {
	return (2.0*math.Atan(math.Exp(y/EquatorialRadius)) - math.Pi/2.0) * 180.0 / math.Pi
}

func clampi(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
