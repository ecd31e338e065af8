package config

import (
	"fmt"

	intconfig "github.com/leapstack-labs/gridview/internal/config"
)

// DefaultSchemaForType returns the default schema for a database type.
// This is a convenience wrapper that delegates to the shared config function.
func DefaultSchemaForType(dbType string) string {
	return intconfig.DefaultSchemaForType(dbType)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if c.Viewport.BufferPages > 10 {
		return fmt.Errorf("viewport.buffer_pages must be at most 10, got %g", c.Viewport.BufferPages)
	}
	if c.UI != nil && (c.UI.Port < 0 || c.UI.Port > 65535) {
		return fmt.Errorf("ui.port out of range: %d", c.UI.Port)
	}
	return intconfig.ValidateTarget(c.Target)
}
