package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestValidateDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
}

func TestValidateDetectsInvalidConfigurations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "non positive chunk size",
			mutate: func(cfg *Config) {
				cfg.World.ChunkSize = 0
			},
			wantErr: "world.chunkSize must be positive",
		},
		{
			name: "missing blocks dir",
			mutate: func(cfg *Config) {
				cfg.Data.BlocksDir = ""
			},
			wantErr: "data.blocksDir must be set",
		},
		{
			name: "source without dir",
			mutate: func(cfg *Config) {
				cfg.Data.Source = "git::https://example.invalid/pack.git"
			},
			wantErr: "data.dir must be set when data.source is used",
		},
		{
			name: "missing structure name",
			mutate: func(cfg *Config) {
				cfg.Structures[0].Name = ""
			},
			wantErr: "structures[0].name must be set",
		},
		{
			name: "duplicated structure",
			mutate: func(cfg *Config) {
				cfg.Structures[1].Name = cfg.Structures[0].Name
			},
			wantErr: `structures[1].name "oak_tree" is duplicated`,
		},
		{
			name: "zero odds",
			mutate: func(cfg *Config) {
				cfg.Structures[0].OneInN = 0
			},
			wantErr: "structures[0].oneInN must be positive",
		},
		{
			name: "evict inside preload",
			mutate: func(cfg *Config) {
				cfg.Streaming.PreloadMargin = 3
			},
			wantErr: "streaming.evictMargin must be >= preloadMargin",
		},
		{
			name: "disk cache without path",
			mutate: func(cfg *Config) {
				cfg.Cache.Backend = CacheDisk
			},
			wantErr: "cache.path must be set for the disk backend",
		},
		{
			name: "unknown cache backend",
			mutate: func(cfg *Config) {
				cfg.Cache.Backend = "redis"
			},
			wantErr: `cache.backend "redis" is not supported`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected an error, got nil")
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("unexpected error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	if want := Default(); !reflect.DeepEqual(cfg, want) {
		t.Fatalf("default configuration mismatch:\nwant: %#v\n got: %#v", want, cfg)
	}
}

func TestLoadReadsJSONFileAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.World.Seed = -7
	cfg.Streaming.GenerationTimeout = Duration(750 * time.Millisecond)

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("loaded configuration mismatch:\nwant: %#v\n got: %#v", cfg, got)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	doc := `
world:
  seed: 99
  chunkSize: 16
data:
  blocksDir: blocks
  structuresDir: structures
structures:
  - name: oak_tree
    maxPerChunk: 2
    oneInN: 5
streaming:
  blockPixels: 16
  preloadMargin: 1
  evictMargin: 3
  workers: 2
  generationTimeout: 1s
cache:
  backend: sqlite
  path: cache.db
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got.World.Seed != 99 || got.World.ChunkSize != 16 {
		t.Fatalf("unexpected world section: %+v", got.World)
	}
	if len(got.Structures) != 1 || got.Structures[0].OneInN != 5 {
		t.Fatalf("unexpected structures: %+v", got.Structures)
	}
	if got.Streaming.GenerationTimeout.Duration() != time.Second {
		t.Fatalf("unexpected timeout: %v", got.Streaming.GenerationTimeout.Duration())
	}
	if got.Cache.Backend != CacheSQLite {
		t.Fatalf("unexpected cache backend: %q", got.Cache.Backend)
	}
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	var decoded Config
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}
	if decoded.Streaming.GenerationTimeout != cfg.Streaming.GenerationTimeout {
		t.Fatalf("timeout mismatch: %v vs %v", decoded.Streaming.GenerationTimeout, cfg.Streaming.GenerationTimeout)
	}
}

func TestLoadInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.World.ChunkSize = 0

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err = Load(path)
	if err == nil {
		t.Fatalf("expected load to fail")
	}
	if !strings.Contains(err.Error(), "validate config: world.chunkSize must be positive") {
		t.Fatalf("unexpected error: %v", err)
	}
}
