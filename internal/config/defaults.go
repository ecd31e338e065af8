package config

import (
	"time"

	"github.com/leapstack-labs/gridview/pkg/core"
)

// Default configuration values.
const (
	DefaultStateFile    = ".gridview/state.db"
	DefaultMaxRows      = 10_000
	DefaultDebounce     = 50 * time.Millisecond
	DefaultBufferPages  = 1.0
	DefaultPollInterval = 2 * time.Second
	DefaultQueryTimeout = 30 * time.Second
	DefaultPort         = 8765
)

// ApplyDefaults fills unset viewport values.
func (v *ViewportConfig) ApplyDefaults() {
	if v == nil {
		return
	}
	if v.MaxRows <= 0 {
		v.MaxRows = DefaultMaxRows
	}
	if v.Debounce <= 0 {
		v.Debounce = DefaultDebounce
	}
	if v.BufferPages < 0 {
		v.BufferPages = 0
	}
	if v.PollInterval <= 0 {
		v.PollInterval = DefaultPollInterval
	}
	if v.QueryTimeout <= 0 {
		v.QueryTimeout = DefaultQueryTimeout
	}
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *core.TargetConfig) {
	if t == nil {
		return
	}

	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}

	if t.Type == "postgres" {
		if t.Port == 0 {
			t.Port = 5432
		}
		if t.Host == "" {
			t.Host = "localhost"
		}
	}
}

// DefaultSchemaForType returns the default schema for a database type.
func DefaultSchemaForType(dbType string) string {
	if dbType == "postgres" {
		return "public"
	}
	return "main"
}
