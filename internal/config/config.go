// Package config handles advisor configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for the advisor client.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Server settings for the remote advisor API
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Timeline settings
	Timeline TimelineConfig `yaml:"timeline" mapstructure:"timeline"`

	// Sync settings
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global client settings.
type GlobalConfig struct {
	// DataDir is where the client stores its data (default: ~/.local/share/advisor).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/advisor).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// ServerConfig contains settings for the remote API.
type ServerConfig struct {
	// URL is the base URL of the advisor backend.
	URL string `yaml:"url" mapstructure:"url"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TimelineConfig contains chat timeline settings.
type TimelineConfig struct {
	// PageSize is how many messages each history page requests.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`

	// ScrollThreshold is how close to the top of the transcript, in rendered
	// lines, a scroll must get before the next older page loads.
	ScrollThreshold int `yaml:"scroll_threshold" mapstructure:"scroll_threshold"`
}

// SyncConfig contains sync orchestration settings.
type SyncConfig struct {
	// Auto starts a recent sync for linked providers after startup.
	Auto bool `yaml:"auto" mapstructure:"auto"`

	// AutoDelay is how long after startup the automatic sync fires.
	AutoDelay time.Duration `yaml:"auto_delay" mapstructure:"auto_delay"`

	// PollInterval is how often sync status is polled while syncs run.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// MaxDuration force-idles a provider syncing longer than this (0 disables).
	MaxDuration time.Duration `yaml:"max_duration" mapstructure:"max_duration"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, high-contrast).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps shows message timestamps in the transcript.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "advisor"),
			ConfigDir: filepath.Join(homeDir, ".config", "advisor"),
		},
		Server: ServerConfig{
			URL:     "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Timeline: TimelineConfig{
			PageSize:        20,
			ScrollThreshold: 500,
		},
		Sync: SyncConfig{
			Auto:         true,
			AutoDelay:    500 * time.Millisecond,
			PollInterval: 2 * time.Second,
			MaxDuration:  0,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowTimestamps: false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}

	if c.Server.Timeout < time.Second {
		return fmt.Errorf("server.timeout must be at least 1s")
	}

	if c.Timeline.PageSize < 1 {
		return fmt.Errorf("timeline.page_size must be at least 1")
	}

	if c.Timeline.ScrollThreshold < 0 {
		return fmt.Errorf("timeline.scroll_threshold must not be negative")
	}

	if c.Sync.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("sync.poll_interval must be at least 100ms")
	}

	if c.Sync.AutoDelay < 0 {
		return fmt.Errorf("sync.auto_delay must not be negative")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the credential store path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Global.DataDir, "advisor.db")
}

// LogFilePath returns the configured log file, defaulting to the data dir.
func (c *Config) LogFilePath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.Global.DataDir, "advisor.log")
}
