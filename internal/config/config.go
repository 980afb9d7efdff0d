// Package config loads and persists the server's YAML configuration,
// following the same Load/DefaultConfig/Save shape as the teacher's
// internal/config package: defaults first, then an on-disk YAML file
// overlaid, then environment variable overrides, with a config file
// written back out the first time none exists.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the indexing/delivery service.
type Config struct {
	// MediaRoot is the absolute directory the index describes.
	MediaRoot string `yaml:"media_root"`

	// Port the HTTP server listens on.
	Port int `yaml:"port"`

	// CacheDir is the derivative cache root (spec §4.2).
	CacheDir string `yaml:"cache_dir"`

	// IndexDBPath is the sqlite index store file (spec §6.3).
	IndexDBPath string `yaml:"index_db_path"`

	// Workers is the scheduler's fixed concurrency C (spec §4.3).
	Workers int `yaml:"workers"`

	// AutoPauseSeconds is the auto-pause grace period applied on every
	// inbound request (spec §4.3 "Auto-pause on request").
	AutoPauseSeconds int `yaml:"auto_pause_seconds"`

	// WatchMode enables the fsnotify-backed discovery watcher in
	// addition to the one directory walk each driver Start performs
	// (spec §4.8).
	WatchMode bool `yaml:"watch_mode"`

	// MoveDebounceMs is loaded, defaulted and saved with the config
	// (spec §4.8, §9 Open Question (c)). The discovery watcher does not
	// read it: its delete/move detection window is the fixed 500ms
	// moveDebounce constant.
	MoveDebounceMs int `yaml:"move_debounce_ms"`

	FFprobePath string `yaml:"ffprobe_path"`
	FFmpegPath  string `yaml:"ffmpeg_path"`

	// StillResizeScript is an optional Pillow-based resize helper
	// invoked through a discovered Python interpreter.
	StillResizeScript string `yaml:"still_resize_script"`

	LogLevel string `yaml:"log_level"`

	// NoAutoStart disables the background discovery driver at
	// startup, honoured by test harnesses (spec §6.3).
	NoAutoStart bool `yaml:"-"`
}

// DefaultConfig returns a Config with the defaults named in spec §6.3.
func DefaultConfig() *Config {
	return &Config{
		MediaRoot:        "./exampleFolder",
		Port:             3000,
		CacheDir:         "./cache",
		IndexDBPath:      "",
		Workers:          2,
		AutoPauseSeconds: 60,
		WatchMode:        false,
		MoveDebounceMs:   500,
		FFprobePath:      "ffprobe",
		FFmpegPath:       "ffmpeg",
		LogLevel:         "info",
	}
}

// Load reads config from a YAML file, applying defaults for missing
// values and environment overrides on top, matching the teacher's
// Load/Save round trip.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			normalize(cfg)
			if saveErr := cfg.Save(path); saveErr != nil {
				fmt.Printf("warning: could not create config file: %v\n", saveErr)
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	normalize(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := firstNonEmpty(os.Getenv("MEDIA_ROOT"), os.Getenv("MEDIA_PATH")); v != "" {
		cfg.MediaRoot = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("INDEX_DB_PATH"); v != "" {
		cfg.IndexDBPath = v
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		// handled by the caller, who passes this as Load's path argument
		_ = v
	}
	if os.Getenv("NO_AUTO_START") == "1" || os.Getenv("NO_AUTO_START") == "true" {
		cfg.NoAutoStart = true
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func normalize(cfg *Config) {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "./cache"
	}
	if cfg.IndexDBPath == "" {
		cfg.IndexDBPath = filepath.Join(cfg.CacheDir, "index.db")
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MoveDebounceMs <= 0 {
		cfg.MoveDebounceMs = 500
	}
	if cfg.AutoPauseSeconds <= 0 {
		cfg.AutoPauseSeconds = 60
	}
}

// Save writes the config to a YAML file, creating parent directories
// as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
