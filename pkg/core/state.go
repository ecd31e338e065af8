package core

import (
	"context"
	"time"
)

// PersistedViewportState is the schema-independent, JSON-safe form of a
// viewport's column, filter and sort configuration. Columns are referenced
// by name because model indices do not survive table recreation.
// Row positions and selections are never persisted.
type PersistedViewportState struct {
	MovedColumns    []PersistedMove           `json:"movedColumns,omitempty"`
	HiddenColumns   []string                  `json:"hiddenColumns,omitempty"`
	QuickFilters    []PersistedQuickFilter    `json:"quickFilters,omitempty"`
	AdvancedFilters []PersistedAdvancedFilter `json:"advancedFilters,omitempty"`
	Sorts           []PersistedSort           `json:"sorts,omitempty"`
	CustomColumns   []string                  `json:"customColumns,omitempty"`
}

// PersistedMove records that the column named From was moved to the
// position held by the column named To at the time of the move.
type PersistedMove struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PersistedQuickFilter is a free-text filter on one column.
type PersistedQuickFilter struct {
	Column string `json:"column"`
	Text   string `json:"text"`
}

// PersistedAdvancedFilter is a structured filter on one column.
type PersistedAdvancedFilter struct {
	Column  string                 `json:"column"`
	Options PersistedFilterOptions `json:"options"`
}

// PersistedFilterOptions holds advanced filter options. Long and date values
// in SelectedValues are encoded as strings to survive the JSON boundary.
type PersistedFilterOptions struct {
	Items           []PersistedFilterItem `json:"items,omitempty"`
	Operators       []string              `json:"operators,omitempty"`
	InvertSelection bool                  `json:"invertSelection,omitempty"`
	SelectedValues  []any                 `json:"selectedValues,omitempty"`
}

// PersistedFilterItem is one condition of an advanced filter.
type PersistedFilterItem struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// PersistedSort is a sort key referenced by column name.
type PersistedSort struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
	IsAbs     bool          `json:"isAbs"`
}

// StateSummary describes a stored viewport state without its payload.
type StateSummary struct {
	Key       string
	Table     string
	UpdatedAt time.Time
}

// StateStore persists viewport states across sessions.
type StateStore interface {
	SaveViewportState(ctx context.Context, key, table string, state *PersistedViewportState) error
	LoadViewportState(ctx context.Context, key string) (*PersistedViewportState, error)
	ListViewportStates(ctx context.Context) ([]StateSummary, error)
	DeleteViewportState(ctx context.Context, key string) error
	Close() error
}
