// Command elevtool composes a single terrain tile from a configured
// elevation layer stack and writes a grayscale preview of the result.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"go.uber.org/zap"

	"elevgrid/internal/cache"
	"elevgrid/internal/config"
	"elevgrid/internal/geo"
	"elevgrid/internal/heightfield"
	"elevgrid/internal/layer"
	"elevgrid/internal/logger"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to JSON or YAML configuration")
		level   = flag.Int("level", 4, "tile level")
		tileX   = flag.Int("x", 0, "tile x")
		tileY   = flag.Int("y", 0, "tile y")
		outPath = flag.String("out", "tile.png", "heightfield preview output path")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.File)
	defer log.Sync()

	stack, closeFn, err := buildStack(cfg, log)
	if err != nil {
		log.Fatal("build layer stack", zap.Error(err))
	}
	defer closeFn()

	profile := profileFor(cfg.Tile.Profile)
	addr := geo.TileAddress{Level: *level, X: *tileX, Y: *tileY, Profile: profile}
	if !addr.Valid() {
		log.Fatal("tile address outside profile grid", zap.String("tile", addr.String()))
	}

	interp := heightfield.Bilinear
	if cfg.Tile.Interpolation == "nearest" {
		interp = heightfield.Nearest
	}

	gg, nm, realData, err := stack.Composite(addr, cfg.Tile.Columns, cfg.Tile.Rows, interp, nil)
	if err != nil {
		log.Fatal("compose tile", zap.String("tile", addr.String()), zap.Error(err))
	}

	lo, hi, valid := heightRange(gg.Grid)
	log.Info("tile composed",
		zap.String("tile", addr.String()),
		zap.Bool("realData", realData),
		zap.Int("validSamples", valid),
		zap.Float32("minHeight", lo),
		zap.Float32("maxHeight", hi),
		zap.Int("normals", len(nm.Normals)))

	if err := writePreview(*outPath, gg.Grid, lo, hi); err != nil {
		log.Fatal("write preview", zap.String("path", *outPath), zap.Error(err))
	}
	log.Info("preview written", zap.String("path", *outPath))
}

func profileFor(name string) *geo.Profile {
	if name == "spherical-mercator" {
		return geo.SphericalMercator()
	}
	return geo.GlobalGeodetic()
}

func cacheUsage(mode string) cache.Usage {
	switch mode {
	case "read-only":
		return cache.UsageReadOnly
	case "cache-only":
		return cache.UsageCacheOnly
	case "none":
		return cache.UsageNone
	default:
		return cache.UsageReadWrite
	}
}

// buildStack assembles the configured layer stack over synthetic sources
// sharing one memory tier and one persistent tier.
func buildStack(cfg *config.Config, log *zap.Logger) (*layer.Stack, func(), error) {
	policy := cache.Policy{
		Usage:  cacheUsage(cfg.Cache.Mode),
		MaxAge: cfg.Cache.MaxAge.Duration(),
	}

	memTier := cache.NewMemoryTier(cfg.Cache.MemoryEntries)

	var diskTier *cache.DiskTier
	closeFn := func() {}
	if policy.Readable() && cfg.Cache.Path != "" {
		var err error
		diskTier, err = cache.NewDiskTier(cfg.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open persistent cache: %w", err)
		}
		closeFn = func() { _ = diskTier.Close() }
	}

	stack := layer.NewStack()
	stack.UseLogger(log)

	for i, sc := range cfg.Sources {
		profile := profileFor(cfg.Tile.Profile).WithDatum(geo.DatumByName(sc.Datum))
		elev := terrainFunc(cfg.Terrain, int64(i))
		src := layer.NewFuncSource(sc.Name, profile, sc.TileSize, sc.MaxLevel, elev)

		st := layer.DefaultSettings(sc.Name)
		st.Offset = sc.Offset
		if sc.NoDataPolicy == "msl" {
			st.NoDataPolicy = layer.NoDataMSL
		}
		st.NoDataValue = float32(sc.NoDataValue)
		st.MinValid = float32(sc.MinValid)
		st.MaxValid = float32(sc.MaxValid)
		st.Enabled = sc.Enabled
		st.Visible = sc.Visible
		st.MinLevel = sc.MinLevel
		st.MaxLevel = sc.MaxLegal
		st.CachePolicy = policy

		opts := []layer.Option{
			layer.WithMemoryCache(memTier),
			layer.WithLogger(log.Named(sc.Name)),
		}
		if diskTier != nil {
			opts = append(opts, layer.WithPersistentCache(diskTier))
		}
		stack.Add(layer.New(st, src, opts...))
	}
	return stack, closeFn, nil
}

// terrainFunc builds a fractal elevation function from the terrain settings.
// The salt keeps stacked synthetic sources from producing identical data.
func terrainFunc(tc config.TerrainConfig, salt int64) func(x, y float64) float32 {
	seed := float64(tc.Seed + salt*7919)
	return func(x, y float64) float32 {
		freq := tc.Frequency
		amp := tc.Amplitude
		var h float64
		for o := 0; o < tc.Octaves; o++ {
			h += amp * valueNoise(x*freq, y*freq, seed+float64(o)*131.0)
			freq *= tc.Lacunarity
			amp *= tc.Persistence
		}
		return float32(h)
	}
}

// valueNoise is a smooth deterministic pseudo-noise in [-1, 1].
func valueNoise(x, y, seed float64) float64 {
	s := math.Sin(x*12.9898+y*78.233+seed*0.618) * 43758.5453
	_, frac := math.Modf(s)
	return 2.0*math.Abs(frac) - 1.0
}

func heightRange(g *heightfield.Grid) (lo, hi float32, valid int) {
	lo, hi = math.MaxFloat32, -math.MaxFloat32
	for _, v := range g.Heights {
		if v == heightfield.NoData {
			continue
		}
		valid++
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if valid == 0 {
		return 0, 0, 0
	}
	return lo, hi, valid
}

// writePreview renders the grid as an 8-bit grayscale PNG, north up. NoData
// samples render black.
func writePreview(path string, g *heightfield.Grid, lo, hi float32) error {
	img := image.NewGray(image.Rect(0, 0, g.W, g.H))
	span := float64(hi - lo)
	if span <= 0 {
		span = 1
	}
	for t := 0; t < g.H; t++ {
		for c := 0; c < g.W; c++ {
			v := g.At(c, t)
			if v == heightfield.NoData {
				continue
			}
			shade := uint8(16 + 239*float64(v-lo)/span)
			// Row 0 is the southern edge; flip for the image.
			img.SetGray(c, g.H-1-t, color.Gray{Y: shade})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return nil
}
