package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to be written: %v", err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Setenv("MEDIA_ROOT", "/srv/photos")
	t.Setenv("PORT", "8080")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MediaRoot != "/srv/photos" {
		t.Errorf("MediaRoot = %q, want /srv/photos", cfg.MediaRoot)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.MediaRoot = "/mnt/library"
	cfg.Workers = 6
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.MediaRoot != "/mnt/library" {
		t.Errorf("MediaRoot = %q, want /mnt/library", loaded.MediaRoot)
	}
	if loaded.Workers != 6 {
		t.Errorf("Workers = %d, want 6", loaded.Workers)
	}
}

func TestIndexDBPathDefaultsUnderCacheDir(t *testing.T) {
	cfg := DefaultConfig()
	normalize(cfg)
	want := filepath.Join(cfg.CacheDir, "index.db")
	if cfg.IndexDBPath != want {
		t.Errorf("IndexDBPath = %q, want %q", cfg.IndexDBPath, want)
	}
}
