package layer

import (
	"sync"

	"elevgrid/internal/geo"
	"elevgrid/internal/heightfield"
)

// Progress is polled between resolution steps. Cancellation and retry
// requests turn fetch failures into recoverable ones that are never
// blacklisted. A nil Progress means run to completion.
type Progress interface {
	Cancelled() bool
	NeedsRetry() bool
}

func cancelledOrRetry(p Progress) bool {
	return p != nil && (p.Cancelled() || p.NeedsRetry())
}

// GridOp is a mutation applied to a freshly fetched grid before it reaches
// any cache, typically nodata normalization.
type GridOp interface {
	Apply(*heightfield.Grid)
}

// Source supplies raw heightfield tiles for one dataset.
type Source interface {
	Name() string
	Profile() *geo.Profile
	// TileSize is the sample count along one edge of the source's native
	// tiles.
	TileSize() int
	// Fetch produces the grid for addr, running op on it first. It returns
	// ErrNoData when the source has nothing at addr and ErrCancelled or
	// ErrRetryRequested when progress interrupted the fetch.
	Fetch(addr geo.TileAddress, op GridOp, progress Progress) (*heightfield.Grid, error)
	// BestAvailable maps addr to the finest address at or below addr's level
	// for which data exists. ok is false when the source covers nothing
	// there.
	BestAvailable(addr geo.TileAddress) (geo.TileAddress, bool)
}

// Blacklist records tile addresses a source has definitively failed on, so
// repeat requests short-circuit. Safe for concurrent use.
type Blacklist struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewBlacklist() *Blacklist {
	return &Blacklist{keys: make(map[string]struct{})}
}

func (b *Blacklist) Add(addr geo.TileAddress) {
	b.mu.Lock()
	b.keys[addr.String()] = struct{}{}
	b.mu.Unlock()
}

func (b *Blacklist) Contains(addr geo.TileAddress) bool {
	b.mu.RLock()
	_, ok := b.keys[addr.String()]
	b.mu.RUnlock()
	return ok
}

func (b *Blacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.keys)
}

// MemorySource serves grids from an in-memory map, keyed by tile address.
// It backs tests and acts as a staging source for pre-baked tiles.
type MemorySource struct {
	name     string
	profile  *geo.Profile
	tileSize int

	mu    sync.RWMutex
	grids map[string]*heightfield.Grid
}

func NewMemorySource(name string, profile *geo.Profile, tileSize int) *MemorySource {
	return &MemorySource{
		name:     name,
		profile:  profile,
		tileSize: tileSize,
		grids:    make(map[string]*heightfield.Grid),
	}
}

// Put stores the grid for addr. The grid is used as-is; callers should not
// mutate it afterwards.
func (s *MemorySource) Put(addr geo.TileAddress, g *heightfield.Grid) {
	s.mu.Lock()
	s.grids[addr.String()] = g
	s.mu.Unlock()
}

func (s *MemorySource) Name() string          { return s.name }
func (s *MemorySource) Profile() *geo.Profile { return s.profile }
func (s *MemorySource) TileSize() int         { return s.tileSize }

func (s *MemorySource) Fetch(addr geo.TileAddress, op GridOp, progress Progress) (*heightfield.Grid, error) {
	if cancelledOrRetry(progress) {
		return nil, ErrCancelled
	}
	s.mu.RLock()
	g, ok := s.grids[addr.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNoData
	}
	out := g.Clone()
	if op != nil {
		op.Apply(out)
	}
	return out, nil
}

func (s *MemorySource) BestAvailable(addr geo.TileAddress) (geo.TileAddress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for a := addr; a.Valid(); a = a.Parent() {
		if _, ok := s.grids[a.String()]; ok {
			return a, true
		}
	}
	return geo.TileAddress{Level: -1}, false
}

// FuncSource synthesizes tiles by sampling an elevation function, up to a
// maximum data level. It backs the command-line tool's procedural terrain.
type FuncSource struct {
	name     string
	profile  *geo.Profile
	tileSize int
	maxLevel int
	fn       func(x, y float64) float32
}

func NewFuncSource(name string, profile *geo.Profile, tileSize, maxLevel int, fn func(x, y float64) float32) *FuncSource {
	return &FuncSource{
		name:     name,
		profile:  profile,
		tileSize: tileSize,
		maxLevel: maxLevel,
		fn:       fn,
	}
}

func (s *FuncSource) Name() string          { return s.name }
func (s *FuncSource) Profile() *geo.Profile { return s.profile }
func (s *FuncSource) TileSize() int         { return s.tileSize }

func (s *FuncSource) Fetch(addr geo.TileAddress, op GridOp, progress Progress) (*heightfield.Grid, error) {
	if cancelledOrRetry(progress) {
		return nil, ErrCancelled
	}
	if !addr.Valid() || addr.Level > s.maxLevel {
		return nil, ErrNoData
	}
	ext := addr.Extent()
	g := heightfield.New(s.tileSize, s.tileSize)
	dx := ext.Width() / float64(s.tileSize-1)
	dy := ext.Height() / float64(s.tileSize-1)
	for t := 0; t < s.tileSize; t++ {
		for c := 0; c < s.tileSize; c++ {
			g.Set(c, t, s.fn(ext.XMin+dx*float64(c), ext.YMin+dy*float64(t)))
		}
	}
	if op != nil {
		op.Apply(g)
	}
	return g, nil
}

func (s *FuncSource) BestAvailable(addr geo.TileAddress) (geo.TileAddress, bool) {
	if !addr.Valid() {
		return geo.TileAddress{Level: -1}, false
	}
	if addr.Level > s.maxLevel {
		return addr.AncestorAt(s.maxLevel), true
	}
	return addr, true
}
