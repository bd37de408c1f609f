// Package config loads the elevation layer stack configuration from JSON or
// YAML files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a config-friendly wrapper around time.Duration that accepts
// human readable strings such as "24h" while still allowing numeric
// representations when necessary.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values
// decode to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.set(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML mirrors the JSON representation.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML decodes a duration from a string or integer scalar.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		return d.set(s)
	}
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	return fmt.Errorf("duration: invalid value %q", value.Value)
}

func (d *Duration) set(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures the tunable parameters needed to bootstrap an elevation
// layer stack.
type Config struct {
	Logging LoggingConfig  `json:"logging" yaml:"logging"`
	Cache   CacheConfig    `json:"cache" yaml:"cache"`
	Tile    TileConfig     `json:"tile" yaml:"tile"`
	Terrain TerrainConfig  `json:"terrain" yaml:"terrain"`
	Sources []SourceConfig `json:"sources" yaml:"sources"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file" yaml:"file"`
}

type CacheConfig struct {
	// Mode is one of "read-write", "read-only", "cache-only", "none".
	Mode          string   `json:"mode" yaml:"mode"`
	MaxAge        Duration `json:"maxAge" yaml:"maxAge"`
	MemoryEntries int      `json:"memoryEntries" yaml:"memoryEntries"`
	Path          string   `json:"path" yaml:"path"`
}

type TileConfig struct {
	// Profile is "global-geodetic" or "spherical-mercator".
	Profile string `json:"profile" yaml:"profile"`
	Columns int    `json:"columns" yaml:"columns"`
	Rows    int    `json:"rows" yaml:"rows"`
	// Interpolation is "bilinear" or "nearest".
	Interpolation string `json:"interpolation" yaml:"interpolation"`
}

// TerrainConfig parameterizes the synthetic elevation function backing
// sources with kind "synthetic".
type TerrainConfig struct {
	Seed        int64   `json:"seed" yaml:"seed"`
	Frequency   float64 `json:"frequency" yaml:"frequency"`
	Amplitude   float64 `json:"amplitude" yaml:"amplitude"`
	Octaves     int     `json:"octaves" yaml:"octaves"`
	Persistence float64 `json:"persistence" yaml:"persistence"`
	Lacunarity  float64 `json:"lacunarity" yaml:"lacunarity"`
}

// SourceConfig describes one elevation source in stacking order; later
// entries take priority.
type SourceConfig struct {
	Name     string `json:"name" yaml:"name"`
	Kind     string `json:"kind" yaml:"kind"` // "synthetic"
	TileSize int    `json:"tileSize" yaml:"tileSize"`
	MaxLevel int    `json:"maxLevel" yaml:"maxLevel"`

	Offset       bool    `json:"offset" yaml:"offset"`
	NoDataPolicy string  `json:"nodataPolicy" yaml:"nodataPolicy"` // "interpolate" or "msl"
	NoDataValue  float64 `json:"nodataValue" yaml:"nodataValue"`
	MinValid     float64 `json:"minValid" yaml:"minValid"`
	MaxValid     float64 `json:"maxValid" yaml:"maxValid"`

	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Visible  bool   `json:"visible" yaml:"visible"`
	MinLevel int    `json:"minLevel" yaml:"minLevel"`
	MaxLegal int    `json:"maxLegalLevel" yaml:"maxLegalLevel"`
	Datum    string `json:"datum" yaml:"datum"` // "" (ellipsoid) or "egm96"
}

// Load reads configuration from a JSON or YAML file, chosen by extension.
// An empty path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			Mode:          "read-write",
			MaxAge:        Duration(24 * time.Hour),
			MemoryEntries: 128,
			Path:          "elevcache/tiles.bin",
		},
		Tile: TileConfig{
			Profile:       "global-geodetic",
			Columns:       257,
			Rows:          257,
			Interpolation: "bilinear",
		},
		Terrain: TerrainConfig{
			Seed:        1337,
			Frequency:   0.02,
			Amplitude:   1200,
			Octaves:     4,
			Persistence: 0.45,
			Lacunarity:  2.0,
		},
		Sources: []SourceConfig{
			{
				Name:        "world-base",
				Kind:        "synthetic",
				TileSize:    257,
				MaxLevel:    12,
				NoDataValue: -32768,
				MinValid:    -11000,
				MaxValid:    9000,
				Enabled:     true,
				Visible:     true,
				MinLevel:    0,
				MaxLegal:    -1,
			},
		},
	}
}

func (c *Config) Validate() error {
	switch c.Cache.Mode {
	case "read-write", "read-only", "cache-only", "none":
	default:
		return fmt.Errorf("cache.mode %q is not a valid mode", c.Cache.Mode)
	}
	if c.Tile.Columns < 2 || c.Tile.Columns > 1024 ||
		c.Tile.Rows < 2 || c.Tile.Rows > 1024 {
		return errors.New("tile.columns and tile.rows must be within [2, 1024]")
	}
	switch c.Tile.Profile {
	case "global-geodetic", "spherical-mercator":
	default:
		return fmt.Errorf("tile.profile %q is not a known profile", c.Tile.Profile)
	}
	switch c.Tile.Interpolation {
	case "bilinear", "nearest":
	default:
		return fmt.Errorf("tile.interpolation %q is not supported", c.Tile.Interpolation)
	}
	if len(c.Sources) == 0 {
		return errors.New("at least one source must be configured")
	}
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name must be set", i)
		}
		if src.TileSize < 2 || src.TileSize > 1024 {
			return fmt.Errorf("sources[%d].tileSize must be within [2, 1024]", i)
		}
		if src.MinValid > src.MaxValid {
			return fmt.Errorf("sources[%d]: minValid must not exceed maxValid", i)
		}
		switch src.NoDataPolicy {
		case "", "interpolate", "msl":
		default:
			return fmt.Errorf("sources[%d].nodataPolicy %q is not supported", i, src.NoDataPolicy)
		}
		switch src.Kind {
		case "synthetic":
		default:
			return fmt.Errorf("sources[%d].kind %q is not supported", i, src.Kind)
		}
	}
	return nil
}
