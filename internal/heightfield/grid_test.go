package heightfield

import (
	"math"
	"testing"

	"elevgrid/internal/geo"
)

func TestGridValidation(t *testing.T) {
	cases := []struct {
		name string
		grid *Grid
		want bool
	}{
		{"Nil", nil, false},
		{"Minimal", New(2, 2), true},
		{"Typical", New(257, 257), true},
		{"Largest", New(1024, 1024), true},
		{"TooNarrow", New(1, 4), false},
		{"TooWide", New(1025, 4), false},
		{"TooShort", New(4, 1), false},
		{"LengthMismatch", &Grid{W: 4, H: 4, Heights: make([]float32, 15)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.grid.Valid(); got != tc.want {
				t.Errorf("Valid() = %v; want %v", got, tc.want)
			}
		})
	}
}

func TestSetExtentDerivesSpacing(t *testing.T) {
	g := New(5, 3)
	g.SetExtent(geo.Extent{XMin: 10, YMin: 20, XMax: 18, YMax: 24})
	if g.OriginX != 10 || g.OriginY != 20 {
		t.Fatalf("origin = (%g, %g); want (10, 20)", g.OriginX, g.OriginY)
	}
	if g.DX != 2 || g.DY != 2 {
		t.Fatalf("spacing = (%g, %g); want (2, 2)", g.DX, g.DY)
	}
}

func TestNormalizerIdempotent(t *testing.T) {
	n := Normalizer{Sentinel: -9999, MinValid: -500, MaxValid: 4000}

	g := New(3, 2)
	g.Heights = []float32{100, -9999, float32(math.NaN()), -501, 4001, 250}

	n.Apply(g)
	want := []float32{100, NoData, NoData, NoData, NoData, 250}
	for i, v := range g.Heights {
		if v != want[i] {
			t.Fatalf("after normalize, sample %d = %g; want %g", i, v, want[i])
		}
	}

	// Second pass must not change anything.
	snapshot := append([]float32(nil), g.Heights...)
	n.Apply(g)
	for i, v := range g.Heights {
		if v != snapshot[i] {
			t.Fatalf("normalization not idempotent at sample %d", i)
		}
	}
}

func TestBilinearSampling(t *testing.T) {
	g := New(3, 3)
	// A plane rising eastward: height == column * 10.
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			g.Set(c, r, float32(c*10))
		}
	}
	gg := &GeoGrid{Grid: g, Extent: geo.Extent{XMin: 0, YMin: 0, XMax: 2, YMax: 2}}

	cases := []struct {
		x, y float64
		want float32
	}{
		{0, 0, 0},
		{2, 2, 20},
		{1, 1, 10},
		{0.5, 0.5, 5},
		{1.5, 0.25, 15},
	}
	for _, tc := range cases {
		got, ok := gg.ElevationAt(tc.x, tc.y, Bilinear)
		if !ok {
			t.Fatalf("point (%g,%g) unexpectedly outside extent", tc.x, tc.y)
		}
		if math.Abs(float64(got-tc.want)) > 1e-5 {
			t.Errorf("ElevationAt(%g,%g) = %g; want %g", tc.x, tc.y, got, tc.want)
		}
	}

	if _, ok := gg.ElevationAt(5, 5, Bilinear); ok {
		t.Errorf("point outside extent must not report ok")
	}
}

func TestBilinearNoDataCollapses(t *testing.T) {
	g := New(2, 2)
	g.Heights = []float32{10, NoData, 10, 10}
	gg := &GeoGrid{Grid: g, Extent: geo.Extent{XMin: 0, YMin: 0, XMax: 1, YMax: 1}}

	got, ok := gg.ElevationAt(0.5, 0.5, Bilinear)
	if !ok {
		t.Fatalf("center of extent must be sampleable")
	}
	if got != NoData {
		t.Fatalf("blend including a NoData corner = %g; want NoData", got)
	}
}

func TestResolveInvalidToMSL(t *testing.T) {
	ext := geo.Extent{XMin: 0, YMin: 0, XMax: 1, YMax: 1}

	g := New(2, 2)
	g.Heights = []float32{NoData, 42, NoData, 7}
	ResolveInvalidToMSL(g, ext, geo.Geographic, geo.EGM96.Geoid())

	for i, v := range g.Heights {
		if v == NoData {
			t.Fatalf("sample %d still NoData after MSL resolution", i)
		}
	}
	if g.Heights[1] != 42 || g.Heights[3] != 7 {
		t.Fatalf("valid samples must be untouched: %v", g.Heights)
	}
}

func TestTransformDatumShiftsValidSamplesOnly(t *testing.T) {
	ext := geo.Extent{XMin: 10, YMin: 40, XMax: 11, YMax: 41}
	g := New(2, 2)
	g.Heights = []float32{100, NoData, 100, 100}

	TransformDatum(geo.EGM96, geo.Ellipsoidal, ext, geo.Geographic, g)

	if g.Heights[1] != NoData {
		t.Fatalf("NoData must survive datum transforms")
	}
	for _, i := range []int{0, 2, 3} {
		if g.Heights[i] == 100 {
			t.Fatalf("sample %d not shifted", i)
		}
	}

	// Identical datums leave everything alone.
	before := append([]float32(nil), g.Heights...)
	TransformDatum(geo.Ellipsoidal, geo.Ellipsoidal, ext, geo.Geographic, g)
	for i, v := range g.Heights {
		if v != before[i] {
			t.Fatalf("no-op transform changed sample %d", i)
		}
	}
}
