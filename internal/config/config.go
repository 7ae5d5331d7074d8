package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a JSON-friendly wrapper around time.Duration that accepts human
// readable strings such as "150ms" in configuration files while still
// allowing numeric representations when necessary.
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
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
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
		return d.parse(s)
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

// MarshalYAML mirrors MarshalJSON for YAML documents.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts the same string and integer forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		var n int64
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
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

// Config captures the tunable parameters of a world.
type Config struct {
	World      WorldConfig       `json:"world" yaml:"world"`
	Data       DataConfig        `json:"data" yaml:"data"`
	Structures []StructureConfig `json:"structures" yaml:"structures"`
	Streaming  StreamingConfig   `json:"streaming" yaml:"streaming"`
	Cache      CacheConfig       `json:"cache" yaml:"cache"`
}

type WorldConfig struct {
	Seed      int64 `json:"seed" yaml:"seed"`
	ChunkSize int   `json:"chunkSize" yaml:"chunkSize"`
}

// DataConfig locates the block-type and structure tables. An empty Dir uses
// the embedded default data pack.
type DataConfig struct {
	Source        string `json:"source" yaml:"source"`     // go-getter URL fetched into Dir before loading
	Dir           string `json:"dir" yaml:"dir"`           // local data pack root
	BlocksDir     string `json:"blocksDir" yaml:"blocksDir"`         // relative to Dir
	StructuresDir string `json:"structuresDir" yaml:"structuresDir"` // relative to Dir
}

// StructureConfig registers one structure category with the chunk generator.
type StructureConfig struct {
	Name        string `json:"name" yaml:"name"`
	Obstruction bool   `json:"obstruction" yaml:"obstruction"`
	MaxPerChunk int    `json:"maxPerChunk" yaml:"maxPerChunk"`
	OneInN      int    `json:"oneInN" yaml:"oneInN"`
}

type StreamingConfig struct {
	BlockPixels       float64  `json:"blockPixels" yaml:"blockPixels"`
	PreloadMargin     int      `json:"preloadMargin" yaml:"preloadMargin"` // chunks materialized around the viewport
	EvictMargin       int      `json:"evictMargin" yaml:"evictMargin"`     // chunks kept before unmaterializing
	Workers           int      `json:"workers" yaml:"workers"`             // parallel chunk generations per window update
	GenerationTimeout Duration `json:"generationTimeout" yaml:"generationTimeout"`
}

const (
	CacheMemory = "memory"
	CacheDisk   = "disk"
	CacheSQLite = "sqlite"
)

type CacheConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	Path    string `json:"path" yaml:"path"`
}

// Load reads configuration from a JSON or YAML file if provided. An empty
// path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := Decode(data, filepath.Ext(path), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Decode unmarshals data into cfg, picking YAML for ".yaml"/".yml" and JSON
// otherwise.
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func Default() *Config {
	return &Config{
		World: WorldConfig{
			Seed:      42,
			ChunkSize: 8,
		},
		Data: DataConfig{
			BlocksDir:     "blocks",
			StructuresDir: "structures",
		},
		Structures: []StructureConfig{
			{Name: "oak_tree", Obstruction: false, MaxPerChunk: 1, OneInN: 4},
			{Name: "tall_grass", Obstruction: true, MaxPerChunk: 2, OneInN: 3},
		},
		Streaming: StreamingConfig{
			BlockPixels:       32,
			PreloadMargin:     1,
			EvictMargin:       2,
			Workers:           4,
			GenerationTimeout: Duration(2 * time.Second),
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
		},
	}
}

func (c *Config) Validate() error {
	if c.World.ChunkSize <= 0 {
		return errors.New("world.chunkSize must be positive")
	}
	if c.Data.BlocksDir == "" {
		return errors.New("data.blocksDir must be set")
	}
	if c.Data.StructuresDir == "" {
		return errors.New("data.structuresDir must be set")
	}
	if c.Data.Source != "" && c.Data.Dir == "" {
		return errors.New("data.dir must be set when data.source is used")
	}
	seen := make(map[string]struct{}, len(c.Structures))
	for i, s := range c.Structures {
		if s.Name == "" {
			return fmt.Errorf("structures[%d].name must be set", i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("structures[%d].name %q is duplicated", i, s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.MaxPerChunk < 0 {
			return fmt.Errorf("structures[%d].maxPerChunk cannot be negative", i)
		}
		if s.OneInN <= 0 {
			return fmt.Errorf("structures[%d].oneInN must be positive", i)
		}
	}
	if c.Streaming.BlockPixels <= 0 {
		return errors.New("streaming.blockPixels must be positive")
	}
	if c.Streaming.PreloadMargin < 0 {
		return errors.New("streaming.preloadMargin cannot be negative")
	}
	if c.Streaming.EvictMargin < c.Streaming.PreloadMargin {
		return errors.New("streaming.evictMargin must be >= preloadMargin")
	}
	if c.Streaming.Workers < 0 {
		return errors.New("streaming.workers cannot be negative")
	}
	switch c.Cache.Backend {
	case "", CacheMemory:
	case CacheDisk, CacheSQLite:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path must be set for the %s backend", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend)
	}
	return nil
}
