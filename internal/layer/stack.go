package layer

import (
	"go.uber.org/zap"

	"elevgrid/internal/geo"
	"elevgrid/internal/heightfield"
)

// maxRetainedGrids bounds the per-request grid memoization. Exceeding it
// flushes every memoized contender grid; subsequent cells refetch on demand.
const maxRetainedGrids = 50

// neighborSlots reserves room for fetching across tile borders; only the
// center slot is populated today.
const (
	neighborSlots = 9
	centerSlot    = 4
)

// Stack is an ordered collection of elevation layers. The last layer added
// has the highest priority. Safe for concurrent tile requests; per-request
// state lives on the stack frame.
type Stack struct {
	layers []*Layer
	log    *zap.Logger
}

func NewStack(layers ...*Layer) *Stack {
	return &Stack{layers: layers, log: zap.NewNop()}
}

// UseLogger attaches a logger; call before serving requests.
func (s *Stack) UseLogger(log *zap.Logger) { s.log = log }

// Add appends a layer at the top of the stack (highest priority).
func (s *Stack) Add(l *Layer) { s.layers = append(s.layers, l) }

func (s *Stack) Len() int { return len(s.layers) }

// layerData pairs an included layer with its best-available address and its
// position in the stack. Created per request, discarded at request end.
type layerData struct {
	layer *Layer
	addr  geo.TileAddress
	index int
}

// gridSlot memoizes one fetched source grid for the duration of a request.
type gridSlot struct {
	gg       *heightfield.GeoGrid
	level    int
	fallback bool
	failed   bool
}

type gridMemo struct {
	contenders [neighborSlots][]gridSlot
	offsets    [neighborSlots][]gridSlot
	count      int
}

func newGridMemo(numContenders, numOffsets int) *gridMemo {
	m := &gridMemo{}
	for n := 0; n < neighborSlots; n++ {
		m.contenders[n] = make([]gridSlot, numContenders)
		m.offsets[n] = make([]gridSlot, numOffsets)
	}
	return m
}

// flush drops every memoized contender grid. Failure flags survive so known
// bad sources are not retried within the request.
func (m *gridMemo) flush() {
	for n := 0; n < neighborSlots; n++ {
		for i := range m.contenders[n] {
			m.contenders[n][i].gg = nil
			m.contenders[n][i].fallback = false
		}
	}
	m.count = 0
}

// Composite resolves a full elevation grid plus normal map for a tile
// address. The grid starts at zero height so offset-only stacks accumulate
// from sea level. The boolean reports whether any non-fallback source
// contributed.
func (s *Stack) Composite(addr geo.TileAddress, cols, rows int, interp heightfield.Interpolation, progress Progress) (*heightfield.GeoGrid, *heightfield.NormalMap, bool, error) {
	grid := heightfield.New(cols, rows)
	grid.SetExtent(addr.Extent())
	nm := heightfield.NewNormalMap(cols, rows)

	real, err := s.PopulateHeightfield(grid, nm, addr, interp, progress)
	if err != nil {
		return nil, nil, false, err
	}
	return &heightfield.GeoGrid{Grid: grid, Extent: addr.Extent()}, nm, real, nil
}

// PopulateHeightfield merges every active layer into the caller's grid, in
// place. Base layers are sampled highest priority first and the first
// non-NoData elevation wins each cell; offset layers then add their heights
// on top. The return value reports whether any cell was resolved from
// non-fallback data.
func (s *Stack) PopulateHeightfield(grid *heightfield.Grid, nm *heightfield.NormalMap, addr geo.TileAddress, interp heightfield.Interpolation, progress Progress) (bool, error) {
	if !grid.Valid() {
		return false, ErrMalformedGrid
	}
	if !addr.Valid() {
		return false, ErrOutOfRange
	}

	// Collect the usable layers, highest priority (last added) first.
	var contenders, offsets []layerData
	numFallback := 0

	for i := len(s.layers) - 1; i >= 0; i-- {
		l := s.layers[i]
		if !l.settings.Enabled || !l.settings.Visible {
			continue
		}

		mapped := addr.MapResolution(grid.W, l.TileSize())
		best := mapped
		use := true

		// The un-mapped address decides legality; the mapped one decides
		// availability.
		if !l.settings.InLegalRange(addr.Level) {
			use = false
		} else if b, ok := l.BestAvailable(mapped); ok {
			best = b
			if best != mapped {
				numFallback++
			}
		} else {
			use = false
		}

		if !use {
			continue
		}
		ld := layerData{layer: l, addr: best, index: i}
		if l.IsOffset() {
			offsets = append(offsets, ld)
		} else {
			contenders = append(contenders, ld)
		}
	}

	if len(contenders) == 0 && len(offsets) == 0 {
		return false, nil
	}
	// Nothing but lower-resolution fallbacks is not real data.
	if len(contenders)+len(offsets) == numFallback {
		return false, nil
	}

	w, h := grid.W, grid.H
	ext := addr.Extent()
	dx := ext.Width() / float64(w-1)
	dy := ext.Height() / float64(h-1)

	deltaLOD := make([]int16, w*h)
	memo := newGridMemo(len(contenders), len(offsets))
	realData := false

	for c := 0; c < w; c++ {
		x := ext.XMin + dx*float64(c)
		for r := 0; r < h; r++ {
			y := ext.YMin + dy*float64(r)

			resolvedIndex := -1

			for i := 0; i < len(contenders) && resolvedIndex < 0; i++ {
				slot := &memo.contenders[centerSlot][i]
				if slot.failed {
					continue
				}

				if slot.gg == nil {
					// Walk up the parent chain until something resolves or
					// the chain leaves the layer's legal range.
					actual := contenders[i].addr
					for slot.gg == nil && actual.Valid() && contenders[i].layer.settings.InLegalRange(actual.Level) {
						gg, err := contenders[i].layer.Resolve(actual, progress)
						if err == nil && gg.Valid() {
							slot.gg = gg
							slot.level = actual.Level
						} else {
							actual = actual.Parent()
						}
					}
					if slot.gg == nil {
						slot.failed = true
						s.log.Debug("contender layer yielded no data",
							zap.String("layer", contenders[i].layer.Name()),
							zap.String("tile", contenders[i].addr.String()))
						continue
					}
					slot.fallback = slot.level != contenders[i].addr.Level
					memo.count++
				}

				if !slot.fallback {
					realData = true
				}

				if elev, ok := slot.gg.ElevationAt(x, y, interp); ok && elev != heightfield.NoData {
					// Remember the winning index so only offsets stacked at
					// or above it apply to this cell.
					resolvedIndex = contenders[i].index
					grid.Set(c, r, elev)
					deltaLOD[r*w+c] = int16(addr.Level - slot.level)
				}

				if memo.count >= maxRetainedGrids {
					memo.flush()
				}
			}

			for i := 0; i < len(offsets); i++ {
				// An offset below the resolving base layer never touches the
				// cell.
				if resolvedIndex >= 0 && offsets[i].index < resolvedIndex {
					continue
				}

				slot := &memo.offsets[centerSlot][i]
				if slot.failed {
					continue
				}
				if slot.gg == nil {
					gg, err := offsets[i].layer.Resolve(offsets[i].addr, progress)
					if err != nil || !gg.Valid() {
						slot.failed = true
						continue
					}
					slot.gg = gg
					slot.level = offsets[i].addr.Level
				}

				// An offset layer that produced a grid counts as real data.
				realData = true

				if elev, ok := slot.gg.ElevationAt(x, y, interp); ok && elev != heightfield.NoData {
					grid.Set(c, r, grid.At(c, r)+elev)
					// This tramples the base layer's resolution record and
					// can facet normals when the base was coarser.
					deltaLOD[r*w+c] = int16(addr.Level - slot.level)
				}
			}
		}
	}

	if nm != nil {
		heightfield.SynthesizeNormals(ext, addr.Profile.Kind, grid, deltaLOD, nm)
	}

	return realData, nil
}
