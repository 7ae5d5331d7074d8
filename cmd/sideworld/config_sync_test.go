package main

import (
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"sideworld/internal/config"
)

func TestWriteConfigFromEnvJSON(t *testing.T) {
	t.Setenv(envConfigYAMLB64, "")

	cfg := config.Default()
	cfg.World.Seed = 7
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	t.Setenv(envConfigJSON, string(data))

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	wrote, err := writeConfigFromEnv(path)
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if !wrote {
		t.Fatalf("expected config to be written")
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if loaded.World.Seed != 7 {
		t.Fatalf("unexpected seed: %d", loaded.World.Seed)
	}
}

func TestWriteConfigFromEnvYAML(t *testing.T) {
	cfg := config.Default()
	cfg.Streaming.GenerationTimeout = config.Duration(5 * time.Second)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	t.Setenv(envConfigJSON, "")
	t.Setenv(envConfigYAMLB64, base64.StdEncoding.EncodeToString(data))

	path := filepath.Join(t.TempDir(), "config.yaml")
	wrote, err := writeConfigFromEnv(path)
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if !wrote {
		t.Fatalf("expected config to be written")
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if got := loaded.Streaming.GenerationTimeout.Duration(); got != 5*time.Second {
		t.Fatalf("unexpected timeout: %v", got)
	}
}

func TestWriteConfigFromEnvNoop(t *testing.T) {
	t.Setenv(envConfigJSON, "")
	t.Setenv(envConfigYAMLB64, "")

	wrote, err := writeConfigFromEnv(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wrote {
		t.Fatalf("expected no config to be written")
	}
}

func TestWriteConfigFromEnvRequiresPath(t *testing.T) {
	t.Setenv(envConfigJSON, `{"world": {"seed": 1, "chunkSize": 8}}`)
	t.Setenv(envConfigYAMLB64, "")

	if _, err := writeConfigFromEnv(""); err == nil {
		t.Fatalf("expected error without a config path")
	}
}

func TestWriteConfigFromEnvValidates(t *testing.T) {
	t.Setenv(envConfigJSON, `{"world": {"seed": 1, "chunkSize": 0}}`)
	t.Setenv(envConfigYAMLB64, "")

	if _, err := writeConfigFromEnv(filepath.Join(t.TempDir(), "config.json")); err == nil {
		t.Fatalf("expected validation error")
	}
}
