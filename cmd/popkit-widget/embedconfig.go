package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// EmbedConfig is the local configuration for one widget embed: where the
// gateway lives and which credentials identify this widget.
type EmbedConfig struct {
	ServerURL    string `toml:"server_url"`
	SiteID       string `toml:"site_id"`
	WidgetID     string `toml:"widget_id"`
	SiteAPIKey   string `toml:"site_api_key"`
	WidgetAPIKey string `toml:"widget_api_key"`
	CachePath    string `toml:"cache_path,omitempty"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "widget.toml"
	}
	return filepath.Join(home, ".config", "popkit", "widget.toml")
}

func defaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "popkit")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "widget.db"), nil
}

func loadEmbedConfig(path string) (EmbedConfig, error) {
	var cfg EmbedConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return EmbedConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:8080"
	}
	if cfg.SiteID == "" || cfg.WidgetID == "" || cfg.SiteAPIKey == "" || cfg.WidgetAPIKey == "" {
		return EmbedConfig{}, fmt.Errorf("%s: site_id, widget_id, site_api_key, and widget_api_key are required", path)
	}
	if cfg.CachePath == "" {
		p, err := defaultCachePath()
		if err != nil {
			return EmbedConfig{}, err
		}
		cfg.CachePath = p
	}
	return cfg, nil
}
