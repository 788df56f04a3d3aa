package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// yamlView mirrors Config with durations as strings, so the written file
// reads back the way a hand-edited one would ("10s", not nanoseconds).
func yamlView(cfg *Config) map[string]any {
	return map[string]any{
		"global": map[string]any{
			"data_dir":   cfg.Global.DataDir,
			"config_dir": cfg.Global.ConfigDir,
		},
		"server": map[string]any{
			"url":     cfg.Server.URL,
			"timeout": cfg.Server.Timeout.String(),
		},
		"logging": map[string]any{
			"level":         cfg.Logging.Level,
			"format":        cfg.Logging.Format,
			"file":          cfg.Logging.File,
			"enable_caller": cfg.Logging.EnableCaller,
		},
		"timeline": map[string]any{
			"page_size":        cfg.Timeline.PageSize,
			"scroll_threshold": cfg.Timeline.ScrollThreshold,
		},
		"sync": map[string]any{
			"auto":          cfg.Sync.Auto,
			"auto_delay":    cfg.Sync.AutoDelay.String(),
			"poll_interval": cfg.Sync.PollInterval.String(),
			"max_duration":  cfg.Sync.MaxDuration.String(),
		},
		"tui": map[string]any{
			"theme":           cfg.TUI.Theme,
			"show_timestamps": cfg.TUI.ShowTimestamps,
		},
	}
}

// Dump renders the configuration as YAML, the same shape the config file
// uses.
func Dump(cfg *Config) (string, error) {
	data, err := yaml.Marshal(yamlView(cfg))
	if err != nil {
		return "", fmt.Errorf("failed to serialize config: %w", err)
	}
	return string(data), nil
}

// WriteFile saves the configuration to path, creating parent directories
// as needed.
func WriteFile(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(yamlView(cfg))
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultFilePath is where Init writes the starter config.
func (c *Config) DefaultFilePath() string {
	return filepath.Join(c.Global.ConfigDir, "config.yaml")
}

// Init writes a starter config file with the current settings. It refuses
// to clobber an existing file unless force is set.
func Init(cfg *Config, path string, force bool) error {
	if path == "" {
		path = cfg.DefaultFilePath()
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}
	return WriteFile(cfg, path)
}
