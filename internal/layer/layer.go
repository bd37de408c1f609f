// Package layer implements elevation layer resolution and compositing: each
// Layer resolves heightfield tiles for one elevation source through a
// two-tier cache, and a Stack merges many layers into a single seamless grid
// per tile request.
package layer

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"elevgrid/internal/cache"
	"elevgrid/internal/geo"
	"elevgrid/internal/heightfield"
)

// Layer resolves heightfield tiles for a single elevation source. Results
// flow through an in-memory tier and a persistent tier before and after the
// source is consulted. Safe for concurrent use.
type Layer struct {
	settings Settings
	source   Source
	profile  *geo.Profile

	blacklist *Blacklist
	memCache  cache.Tier
	diskCache cache.Tier

	log   *zap.Logger
	clock func() time.Time

	// preCacheOp is built at most once; the mutex guards the
	// check-then-create.
	opMu       sync.Mutex
	preCacheOp GridOp
}

// Option configures a Layer.
type Option func(*Layer)

// WithMemoryCache attaches the process-lifetime cache tier.
func WithMemoryCache(t cache.Tier) Option {
	return func(l *Layer) { l.memCache = t }
}

// WithPersistentCache attaches the durable cache tier.
func WithPersistentCache(t cache.Tier) Option {
	return func(l *Layer) { l.diskCache = t }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Layer) { l.log = log }
}

// WithClock overrides the time source used for cache expiry.
func WithClock(clock func() time.Time) Option {
	return func(l *Layer) { l.clock = clock }
}

// New creates a layer over the given source. A nil source is allowed only
// for cache-only layers.
func New(settings Settings, source Source, opts ...Option) *Layer {
	l := &Layer{
		settings:  settings,
		source:    source,
		blacklist: NewBlacklist(),
		log:       zap.NewNop(),
		clock:     time.Now,
	}
	if source != nil {
		l.profile = source.Profile()
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Layer) Name() string       { return l.settings.Name }
func (l *Layer) Settings() Settings { return l.settings }
func (l *Layer) IsOffset() bool     { return l.settings.Offset }

// Profile is the layer's native profile, taken from the source.
func (l *Layer) Profile() *geo.Profile { return l.profile }

// TileSize is the source's native tile sample count, defaulting when no
// source is attached.
func (l *Layer) TileSize() int {
	if l.source == nil {
		return 17
	}
	return l.source.TileSize()
}

// BestAvailable maps addr to the finest address the source can actually
// serve at or below addr's level.
func (l *Layer) BestAvailable(addr geo.TileAddress) (geo.TileAddress, bool) {
	if l.source == nil {
		return geo.TileAddress{Level: -1}, false
	}
	return l.source.BestAvailable(addr)
}

// Blacklist exposes the layer's failed-address set.
func (l *Layer) Blacklist() *Blacklist { return l.blacklist }

// cacheKey combines the tile address with the profile's full signature so a
// vertical datum change misses the cache.
func cacheKey(addr geo.TileAddress) string {
	return addr.String() + "_" + addr.Profile.FullSignature()
}

// getOrCreatePreCacheOp lazily builds the normalization op applied to every
// grid before it reaches a cache. Construction happens at most once.
func (l *Layer) getOrCreatePreCacheOp() GridOp {
	l.opMu.Lock()
	defer l.opMu.Unlock()
	if l.preCacheOp == nil {
		l.preCacheOp = heightfield.Normalizer{
			Sentinel: l.settings.NoDataValue,
			MinValid: l.settings.MinValid,
			MaxValid: l.settings.MaxValid,
		}
	}
	return l.preCacheOp
}

// Resolve produces the heightfield for a tile address, consulting the memory
// tier, then the persistent tier, then the source. Expired but structurally
// valid cache entries are kept as a fallback when fresh data cannot be
// produced. Successful results carry origin and spacing derived from the
// requested extent.
func (l *Layer) Resolve(addr geo.TileAddress, progress Progress) (*heightfield.GeoGrid, error) {
	if !l.settings.Enabled || !l.settings.Visible {
		return nil, ErrDisabled
	}
	if !addr.Valid() {
		return nil, ErrOutOfRange
	}

	policy := l.settings.CachePolicy
	key := cacheKey(addr)
	ext := addr.Extent()

	fromMemCache := false
	var grid *heightfield.Grid

	if l.memCache != nil && policy.Readable() {
		if e, ok, err := l.memCache.Read(key); ok && err == nil {
			grid = e.Grid
			fromMemCache = true
		}
	}

	if grid == nil {
		var cachedFallback *heightfield.Grid

		if l.diskCache != nil && policy.Readable() {
			if e, ok, err := l.diskCache.Read(key); ok && err == nil && e.Grid.Valid() {
				if policy.Expired(e.LastModified, l.clock()) {
					cachedFallback = e.Grid
				} else {
					grid = e.Grid
				}
			}
		}

		// Cache-only mode never touches the source; a miss is simply no
		// data.
		if grid == nil && policy.CacheOnly() {
			return nil, ErrNoSource
		}

		if grid == nil {
			if l.source == nil {
				return nil, ErrNoSource
			}
			if !l.settings.InLegalRange(addr.Level) {
				return nil, ErrOutOfRange
			}

			fresh, err := l.fetch(addr, progress)
			if err == nil && !fresh.Valid() {
				l.log.Warn("source returned an illegal heightfield",
					zap.String("layer", l.settings.Name),
					zap.String("tile", addr.String()))
				fresh = nil
				err = ErrMalformedGrid
			}

			if err == nil {
				grid = fresh
				if l.diskCache != nil && policy.Writeable() {
					if werr := l.diskCache.Write(key, grid, l.clock()); werr != nil {
						l.log.Warn("persistent cache write failed",
							zap.String("tile", addr.String()), zap.Error(werr))
					}
				}
			} else if cachedFallback != nil {
				l.log.Debug("using expired cached heightfield",
					zap.String("layer", l.settings.Name),
					zap.String("tile", addr.String()))
				grid = cachedFallback
			} else {
				return nil, err
			}
		}

		grid.SetExtent(ext)
	}

	if l.memCache != nil && !fromMemCache {
		if werr := l.memCache.Write(key, grid, l.clock()); werr != nil {
			l.log.Warn("memory cache write failed",
				zap.String("tile", addr.String()), zap.Error(werr))
		}
	}

	if l.settings.NoDataPolicy == NoDataMSL && addr.Profile.Datum.IsEllipsoidal() {
		if l.profile != nil {
			if geoid := l.profile.Datum.Geoid(); geoid != nil {
				heightfield.ResolveInvalidToMSL(grid, ext, addr.Profile.Kind, geoid)
			}
		}
	}

	return &heightfield.GeoGrid{Grid: grid, Extent: ext}, nil
}

// fetch obtains fresh data from the source. Horizontally equivalent profiles
// take the direct path; otherwise the tile is assembled from the source's
// native tiles.
func (l *Layer) fetch(addr geo.TileAddress, progress Progress) (*heightfield.Grid, error) {
	if l.blacklist.Contains(addr) {
		return nil, ErrBlacklisted
	}

	if !addr.Profile.HorizEquivalentTo(l.source.Profile()) {
		return l.assemble(addr, progress)
	}

	g, err := l.source.Fetch(addr, l.getOrCreatePreCacheOp(), progress)
	if err != nil || g == nil {
		if err == nil {
			err = ErrNoData
		}
		// Cancellation and retry requests are recoverable; everything else
		// marks the address so future requests short-circuit.
		if !cancelledOrRetry(progress) &&
			!errors.Is(err, ErrCancelled) && !errors.Is(err, ErrRetryRequested) {
			l.blacklist.Add(addr)
		}
		return nil, err
	}

	srcDatum := l.source.Profile().Datum
	if !addr.Profile.Datum.Equivalent(srcDatum) {
		heightfield.TransformDatum(srcDatum, addr.Profile.Datum, addr.Extent(), addr.Profile.Kind, g)
	}
	return g, nil
}

// assemble builds a tile for a foreign profile by resolving every native
// source tile intersecting the requested extent and sampling them finest
// first. The first source with a valid elevation at a point wins, by
// resolution rank rather than registration order.
func (l *Layer) assemble(addr geo.TileAddress, progress Progress) (*heightfield.Grid, error) {
	native := l.source.Profile().IntersectingTiles(addr)

	var parts []*heightfield.GeoGrid
	for _, na := range native {
		if !l.settings.InLegalRange(na.Level) {
			continue
		}
		g, err := l.fetch(na, progress)
		if err != nil || !g.Valid() {
			continue
		}
		partExt := na.Extent()
		g.SetExtent(partExt)
		parts = append(parts, &heightfield.GeoGrid{Grid: g, Extent: partExt})
	}
	if len(parts) == 0 {
		return nil, ErrNoData
	}

	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].Resolution() < parts[j].Resolution()
	})

	w, h := 0, 0
	for _, p := range parts {
		if p.Grid.W > w {
			w = p.Grid.W
		}
		if p.Grid.H > h {
			h = p.Grid.H
		}
	}

	out := heightfield.NewNoData(w, h)
	ext := addr.Extent()

	// The parts are in the source's coordinate system; the output extent is
	// in the requested one.
	srcKind := l.source.Profile().Kind
	dx := ext.Width() / float64(w-1)
	dy := ext.Height() / float64(h-1)

	for c := 0; c < w; c++ {
		x := ext.XMin + dx*float64(c)
		for t := 0; t < h; t++ {
			y := ext.YMin + dy*float64(t)
			sx, sy := x, y
			if addr.Profile.Kind != srcKind {
				lon, lat := geo.ToGeographic(x, y, addr.Profile.Kind)
				sx, sy = geo.FromGeographic(lon, lat, srcKind)
			}
			for _, p := range parts {
				if e, ok := p.ElevationAt(sx, sy, Bilinear); ok && e != heightfield.NoData {
					out.Set(c, t, e)
					break
				}
			}
		}
	}

	srcDatum := l.source.Profile().Datum
	if !addr.Profile.Datum.Equivalent(srcDatum) {
		heightfield.TransformDatum(srcDatum, addr.Profile.Datum, ext, addr.Profile.Kind, out)
	}
	return out, nil
}

// Bilinear re-exported for callers that only import this package.
const Bilinear = heightfield.Bilinear
