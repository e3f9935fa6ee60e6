package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgguard "github.com/pgguard/pgguard"
)

func TestConfigureWritesStarterConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, ".pgguard", "config.json")

	if err := configure(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	var cfg pgguard.ServerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("starter config is not valid JSON: %v", err)
	}
	if !cfg.ReadOnly {
		t.Fatal("starter config must default to read-only")
	}
	if cfg.Server.Port <= 0 {
		t.Fatalf("starter config must set a server port, got %d", cfg.Server.Port)
	}
	if len(cfg.ErrorPrompts) == 0 {
		t.Fatal("starter config should include a guidance rule")
	}
}

func TestConfigureRefusesOverwrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	err := configure(path, false)
	if err == nil {
		t.Fatal("expected error for existing config without --force")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := configure(path, true); err != nil {
		t.Fatalf("expected --force to overwrite, got %v", err)
	}
}
