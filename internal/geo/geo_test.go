package geo

import (
	"math"
	"testing"
)

func TestTileExtentCoversProfileBounds(t *testing.T) {
	p := GlobalGeodetic()

	root := TileAddress{Level: 0, X: 0, Y: 0, Profile: p}
	ext := root.Extent()
	if ext.XMin != -180 || ext.XMax != 0 || ext.YMin != -90 || ext.YMax != 90 {
		t.Fatalf("unexpected extent for root tile 0: %v", ext)
	}

	// Northwest quadrant of the western hemisphere at level 1.
	ext = TileAddress{Level: 1, X: 0, Y: 0, Profile: p}.Extent()
	if ext.XMin != -180 || ext.XMax != -90 || ext.YMin != 0 || ext.YMax != 90 {
		t.Fatalf("unexpected extent for 1/0/0: %v", ext)
	}
}

func TestTileAddressValidity(t *testing.T) {
	p := GlobalGeodetic()
	cases := []struct {
		name string
		addr TileAddress
		want bool
	}{
		{"Root", TileAddress{0, 0, 0, p}, true},
		{"RootEast", TileAddress{0, 1, 0, p}, true},
		{"XTooLarge", TileAddress{0, 2, 0, p}, false},
		{"YTooLarge", TileAddress{0, 0, 1, p}, false},
		{"NegativeLevel", TileAddress{-1, 0, 0, p}, false},
		{"NilProfile", TileAddress{3, 1, 1, nil}, false},
		{"DeepTile", TileAddress{5, 63, 31, p}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.addr.Valid(); got != tc.want {
				t.Errorf("Valid(%v) = %v; want %v", tc.addr, got, tc.want)
			}
		})
	}
}

func TestParentChainTerminates(t *testing.T) {
	p := GlobalGeodetic()
	addr := TileAddress{Level: 5, X: 40, Y: 17, Profile: p}

	steps := 0
	for a := addr; a.Valid(); a = a.Parent() {
		steps++
		if steps > 10 {
			t.Fatalf("parent chain did not terminate")
		}
	}
	if steps != 6 {
		t.Fatalf("expected 6 addresses from level 5 to 0, walked %d", steps)
	}

	parent := addr.Parent()
	if parent.Level != 4 || parent.X != 20 || parent.Y != 8 {
		t.Fatalf("unexpected parent %v", parent)
	}
}

func TestMapResolution(t *testing.T) {
	p := GlobalGeodetic()
	addr := TileAddress{Level: 6, X: 10, Y: 10, Profile: p}

	// Grid size matching or exceeding the source tile size leaves the
	// address alone.
	if got := addr.MapResolution(257, 257); got != addr {
		t.Fatalf("same tile size should not remap, got %v", got)
	}
	if got := addr.MapResolution(512, 257); got != addr {
		t.Fatalf("larger grid should not remap, got %v", got)
	}

	// A 256-sample source tile holds two levels worth of 65-sample grids.
	got := addr.MapResolution(65, 256)
	if got.Level != 4 {
		t.Fatalf("expected remap to level 4, got level %d", got.Level)
	}
	if got != addr.AncestorAt(4) {
		t.Fatalf("remapped address %v is not the level-4 ancestor", got)
	}
}

func TestProfileSignatures(t *testing.T) {
	geo1 := GlobalGeodetic()
	geo2 := GlobalGeodetic().WithDatum(EGM96)
	merc := SphericalMercator()

	if !geo1.HorizEquivalentTo(geo2) {
		t.Errorf("datum change must not break horizontal equivalence")
	}
	if geo1.HorizEquivalentTo(merc) {
		t.Errorf("geodetic and mercator profiles must not be equivalent")
	}
	if geo1.FullSignature() == geo2.FullSignature() {
		t.Errorf("full signature must include the vertical datum")
	}
}

func TestIntersectingTilesSameKind(t *testing.T) {
	p := GlobalGeodetic()
	addr := TileAddress{Level: 3, X: 5, Y: 2, Profile: p}

	tiles := p.IntersectingTiles(addr)
	if len(tiles) == 0 {
		t.Fatalf("expected at least one intersecting tile")
	}
	ext := addr.Extent()
	for _, tile := range tiles {
		if !tile.Valid() {
			t.Errorf("intersecting tile %v is invalid", tile)
		}
		if !tile.Extent().Intersects(ext) {
			t.Errorf("tile %v does not intersect requested extent", tile)
		}
	}
}

func TestIntersectingTilesAcrossProfiles(t *testing.T) {
	merc := SphericalMercator()
	geodetic := GlobalGeodetic()
	addr := TileAddress{Level: 2, X: 1, Y: 1, Profile: merc}

	tiles := geodetic.IntersectingTiles(addr)
	if len(tiles) == 0 {
		t.Fatalf("expected geodetic tiles covering a mercator tile")
	}
	for _, tile := range tiles {
		if tile.Profile != geodetic {
			t.Fatalf("intersecting tile carries wrong profile")
		}
	}
}

func TestMercatorRoundTrip(t *testing.T) {
	for _, lon := range []float64{-179, -42.5, 0, 13.4, 179} {
		for _, lat := range []float64{-80, -45, 0, 30, 80} {
			x, y := FromGeographic(lon, lat, Projected)
			gotLon, gotLat := ToGeographic(x, y, Projected)
			if math.Abs(gotLon-lon) > 1e-6 || math.Abs(gotLat-lat) > 1e-6 {
				t.Fatalf("round trip (%g,%g) -> (%g,%g)", lon, lat, gotLon, gotLat)
			}
		}
	}
}

func TestDatumShift(t *testing.T) {
	if got := DatumShift(Ellipsoidal, Ellipsoidal, 45, 10); got != 0 {
		t.Fatalf("identical datums must not shift, got %g", got)
	}

	up := DatumShift(EGM96, Ellipsoidal, 45, 10)
	down := DatumShift(Ellipsoidal, EGM96, 45, 10)
	if up != -down {
		t.Fatalf("datum shift must be antisymmetric: %g vs %g", up, down)
	}
	if up == 0 {
		t.Fatalf("geoid to ellipsoid shift should be nonzero away from crossings")
	}
}
