// Package config provides configuration management for the gridview CLI.
//
// This package extends the shared configuration types from internal/config
// with CLI-specific fields. The shared types are re-exported here via type
// aliases for convenience.
package config

import (
	sharedcfg "github.com/leapstack-labs/gridview/internal/config"
	"github.com/leapstack-labs/gridview/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// ViewportConfig is an alias for the shared viewport configuration.
type ViewportConfig = sharedcfg.ViewportConfig

// UIConfig holds configuration for the dashboard server.
type UIConfig struct {
	Port          int    `koanf:"port"`
	AutoOpen      bool   `koanf:"auto_open"`
	Watch         bool   `koanf:"watch"`
	SessionSecret string `koanf:"session_secret"`
}

// DefaultUIConfig returns a UIConfig with default values.
func DefaultUIConfig() *UIConfig {
	return &UIConfig{
		Port:     sharedcfg.DefaultPort,
		AutoOpen: true,
		Watch:    true,
	}
}

// GetUIConfig returns the UI config with defaults applied for any unset values.
func (c *Config) GetUIConfig() *UIConfig {
	if c.UI == nil {
		return DefaultUIConfig()
	}
	ui := c.UI
	if ui.Port == 0 {
		ui.Port = sharedcfg.DefaultPort
	}
	return ui
}

// Config holds all CLI configuration options.
type Config struct {
	StatePath   string         `koanf:"state_path"`
	Verbose     bool           `koanf:"verbose"`
	Target      *TargetConfig  `koanf:"target"`
	Viewport    ViewportConfig `koanf:"viewport"`
	UI          *UIConfig      `koanf:"ui"`
	ProjectRoot string         `koanf:"-"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultStateFile = sharedcfg.DefaultStateFile
)
