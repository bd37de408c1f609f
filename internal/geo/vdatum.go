package geo

import "math"

// VDatum identifies the vertical reference surface heights are measured
// against. The zero value is the WGS84 ellipsoid (height above ellipsoid);
// geoid-based datums carry a Geoid used for conversion offsets.
type VDatum struct {
	name  string
	geoid *Geoid
}

// Ellipsoidal is the height-above-ellipsoid datum.
var Ellipsoidal = VDatum{}

// EGM96 approximates the EGM96 mean-sea-level datum.
var EGM96 = VDatum{name: "egm96", geoid: egm96Geoid}

func (d VDatum) Name() string {
	if d.name == "" {
		return "ellipsoid"
	}
	return d.name
}

func (d VDatum) IsEllipsoidal() bool { return d.geoid == nil }

// Geoid returns the datum's geoid model, nil for ellipsoidal datums.
func (d VDatum) Geoid() *Geoid { return d.geoid }

// Equivalent reports whether two datums measure heights from the same
// surface.
func (d VDatum) Equivalent(o VDatum) bool { return d.name == o.name }

// DatumByName resolves a configured datum name. Unknown names fall back to
// the ellipsoid.
func DatumByName(name string) VDatum {
	if name == "egm96" {
		return EGM96
	}
	return Ellipsoidal
}

// Geoid models the separation between a level surface and the ellipsoid. The
// built-in model is a low-order approximation: the contract here is a smooth,
// deterministic offset, not survey-grade accuracy.
type Geoid struct {
	name string
}

var egm96Geoid = &Geoid{name: "egm96"}

// Offset returns the geoid height above the ellipsoid, in meters, at a
// geographic location. Longitude is in degrees [-180,180], latitude in
// degrees [-90,90].
func (g *Geoid) Offset(lat, lon float64) float64 {
	latRad := lat * math.Pi / 180.0
	lonRad := lon * math.Pi / 180.0
	// Dominant low-degree undulation terms; ranges roughly -60..+50 m.
	return -15.0 +
		20.0*math.Sin(latRad)*math.Cos(lonRad) -
		28.0*math.Cos(2.0*latRad)*math.Sin(lonRad+1.1) +
		8.0*math.Sin(3.0*latRad)*math.Cos(2.0*lonRad-0.4)
}

// DatumShift returns the value to add to a height measured in "from" to
// express it in "to", at the given location.
func DatumShift(from, to VDatum, lat, lon float64) float64 {
	if from.Equivalent(to) {
		return 0
	}
	var shift float64
	// Geoid-relative to ellipsoid adds the undulation; the reverse removes it.
	if g := from.Geoid(); g != nil {
		shift += g.Offset(lat, lon)
	}
	if g := to.Geoid(); g != nil {
		shift -= g.Offset(lat, lon)
	}
	return shift
}
