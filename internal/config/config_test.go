package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if len(cfg.Sources) == 0 {
		t.Fatalf("defaults must include at least one source")
	}
}

func TestLoadJSONOverrides(t *testing.T) {
	path := writeFile(t, "cfg.json", `{
		"cache": {"mode": "read-only", "maxAge": "2h", "memoryEntries": 16, "path": "c/tiles.bin"},
		"tile": {"profile": "spherical-mercator", "columns": 65, "rows": 65, "interpolation": "nearest"},
		"sources": [
			{"name": "base", "kind": "synthetic", "tileSize": 65, "maxLevel": 8,
			 "minValid": -100, "maxValid": 100, "enabled": true, "visible": true, "maxLegalLevel": -1}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if cfg.Cache.Mode != "read-only" {
		t.Errorf("cache.mode = %q; want read-only", cfg.Cache.Mode)
	}
	if cfg.Cache.MaxAge.Duration() != 2*time.Hour {
		t.Errorf("cache.maxAge = %v; want 2h", cfg.Cache.MaxAge.Duration())
	}
	if cfg.Tile.Profile != "spherical-mercator" || cfg.Tile.Columns != 65 {
		t.Errorf("tile settings not applied: %+v", cfg.Tile)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "base" {
		t.Errorf("sources not applied: %+v", cfg.Sources)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
cache:
  mode: read-write
  maxAge: 30m
tile:
  profile: global-geodetic
  columns: 129
  rows: 129
  interpolation: bilinear
sources:
  - name: world
    kind: synthetic
    tileSize: 129
    maxLevel: 10
    minValid: -11000
    maxValid: 9000
    enabled: true
    visible: true
    maxLegalLevel: -1
  - name: overlay
    kind: synthetic
    tileSize: 129
    maxLevel: 10
    offset: true
    minValid: -500
    maxValid: 500
    enabled: true
    visible: true
    maxLegalLevel: -1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Cache.MaxAge.Duration() != 30*time.Minute {
		t.Errorf("cache.maxAge = %v; want 30m", cfg.Cache.MaxAge.Duration())
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(cfg.Sources))
	}
	if !cfg.Sources[1].Offset {
		t.Errorf("second source should be an offset layer")
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"BadCacheMode", func(c *Config) { c.Cache.Mode = "write-back" }},
		{"ColumnsTooSmall", func(c *Config) { c.Tile.Columns = 1 }},
		{"RowsTooLarge", func(c *Config) { c.Tile.Rows = 2048 }},
		{"UnknownProfile", func(c *Config) { c.Tile.Profile = "utm" }},
		{"BadInterpolation", func(c *Config) { c.Tile.Interpolation = "cubic" }},
		{"NoSources", func(c *Config) { c.Sources = nil }},
		{"UnnamedSource", func(c *Config) { c.Sources[0].Name = "" }},
		{"BadTileSize", func(c *Config) { c.Sources[0].TileSize = 1 }},
		{"InvertedValidRange", func(c *Config) {
			c.Sources[0].MinValid = 10
			c.Sources[0].MaxValid = -10
		}},
		{"BadNoDataPolicy", func(c *Config) { c.Sources[0].NoDataPolicy = "guess" }},
		{"BadKind", func(c *Config) { c.Sources[0].Kind = "wms" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation failure")
			}
		})
	}
}

func TestDurationDecoding(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte(`"150ms"`)); err != nil {
		t.Fatalf("decode string duration: %v", err)
	}
	if d.Duration() != 150*time.Millisecond {
		t.Errorf("got %v; want 150ms", d.Duration())
	}

	if err := d.UnmarshalJSON([]byte(`1000000`)); err != nil {
		t.Fatalf("decode numeric duration: %v", err)
	}
	if d.Duration() != time.Millisecond {
		t.Errorf("got %v; want 1ms", d.Duration())
	}

	if err := d.UnmarshalJSON([]byte(`"bogus"`)); err == nil {
		t.Errorf("expected parse error for bogus duration")
	}
}
