// Package config provides configuration types shared by the CLI and the
// dashboard server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/gridview/pkg/adapter"
	"github.com/leapstack-labs/gridview/pkg/core"
)

// ViewportConfig tunes the viewport engine and the SQL remote table.
type ViewportConfig struct {
	// MaxRows bounds the height of a single viewport request.
	MaxRows int64 `koanf:"max_rows"`

	// Debounce is the quiet period that coalesces viewport requests.
	Debounce time.Duration `koanf:"debounce"`

	// BufferPages is the number of visible-column widths fetched on each
	// side of the visible columns.
	BufferPages float64 `koanf:"buffer_pages"`

	// PollInterval is how often open viewports are re-read for changes.
	PollInterval time.Duration `koanf:"poll_interval"`

	// QueryTimeout bounds each remote query.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// DefaultViewportConfig returns a ViewportConfig with default values.
func DefaultViewportConfig() ViewportConfig {
	v := ViewportConfig{BufferPages: DefaultBufferPages}
	v.ApplyDefaults()
	return v
}

// ValidateTarget checks if the target configuration is valid.
// It uses the adapter registry to determine which adapter types are available.
func ValidateTarget(t *core.TargetConfig) error {
	if t == nil {
		return fmt.Errorf("target is required")
	}
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}

	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}

	return nil
}
