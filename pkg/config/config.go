// Package config loads tool defaults from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"

	"github.com/hbagdi/tracepulse/pkg/util"
)

// Config holds tool-wide defaults. Command-line flags override these.
type Config struct {
	TimeoutSeconds  int    `json:"timeout_seconds"`
	Workers         int    `json:"workers"`
	Repetitions     int    `json:"repetitions"`
	IdleWindowMs    int    `json:"idle_window_ms"`
	MaxRedirects    int    `json:"max_redirects"`
	FollowRedirects bool   `json:"follow_redirects"`
	DashboardAddr   string `json:"dashboard_addr"`
	DatabasePath    string `json:"database_path"`
	GeoLookup       bool   `json:"geo_lookup"`
}

// DefaultConfig returns the defaults used when no file is present.
func DefaultConfig() Config {
	return Config{
		TimeoutSeconds: 30,
		Workers:        5,
		Repetitions:    1,
		IdleWindowMs:   2000,
		MaxRedirects:   10,
		DashboardAddr:  "localhost:7893",
	}
}

// DefaultPath is the config file location searched when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tracepulse", "config.yaml")
}

// Load reads configuration from a YAML file. Missing files fall back to
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %v", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %v", err)
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = DefaultConfig().TimeoutSeconds
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.Repetitions <= 0 {
		cfg.Repetitions = DefaultConfig().Repetitions
	}
	if cfg.IdleWindowMs <= 0 {
		cfg.IdleWindowMs = DefaultConfig().IdleWindowMs
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultConfig().MaxRedirects
	}
	if cfg.DashboardAddr == "" {
		cfg.DashboardAddr = DefaultConfig().DashboardAddr
	}
	if cfg.DatabasePath == "" {
		cacheDir, err := util.CacheDir()
		if err != nil {
			return Config{}, err
		}
		cfg.DatabasePath = filepath.Join(cacheDir, "tracepulse-traces.db")
	}
	return cfg, nil
}
