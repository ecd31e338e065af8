// Package grid provides the dashboard's grid handlers: one viewport per
// browser session, driven by datastar signals and streamed to the page.
package grid

import "github.com/leapstack-labs/gridview/pkg/core"

// OpenSignals selects the table to open.
type OpenSignals struct {
	Table string `json:"table"`
}

// ViewportSignals is the requested window: rows [top, bottom] and visual
// columns [left, right].
type ViewportSignals struct {
	Top    int64 `json:"top"`
	Bottom int64 `json:"bottom"`
	Left   int   `json:"left"`
	Right  int   `json:"right"`
}

// SortSignals toggles the sort on SortColumn, or replaces the sort list
// with Sorts when SortColumn is empty.
type SortSignals struct {
	SortColumn string       `json:"sortColumn"`
	SortMulti  bool         `json:"sortMulti"`
	Sorts      []SortSignal `json:"sorts"`
}

// SortSignal is one sort key.
type SortSignal struct {
	Column    string             `json:"column"`
	Direction core.SortDirection `json:"direction"`
	IsAbs     bool               `json:"isAbs"`
}

// FilterSignals sets the quick or advanced filter of FilterColumn, or
// clears every filter.
type FilterSignals struct {
	FilterColumn string          `json:"filterColumn"`
	FilterText   string          `json:"filterText"`
	Advanced     *AdvancedSignal `json:"advanced"`
	ClearFilters bool            `json:"clearFilters"`
}

// AdvancedSignal is an advanced filter. Values arrive as JSON and are
// decoded against the column type.
type AdvancedSignal struct {
	Conditions []core.Condition `json:"conditions"`
	Operators  []string         `json:"operators"`
	Invert     bool             `json:"invert"`
	Values     []any            `json:"values"`
}

// CustomColumnsSignals replaces the custom column expressions.
type CustomColumnsSignals struct {
	CustomColumns []string `json:"customColumns"`
}

// MoveSignals moves a column between visual positions.
type MoveSignals struct {
	MoveFrom int `json:"moveFrom"`
	MoveTo   int `json:"moveTo"`
}

// ColumnSignals names a column to hide or show.
type ColumnSignals struct {
	Column string `json:"column"`
}

// StateSignals names a saved state. Empty means the table name.
type StateSignals struct {
	StateKey string `json:"stateKey"`
}

// TableInfo is one entry of the table list.
type TableInfo struct {
	Name   string `json:"name"`
	Schema string `json:"schema,omitempty"`
}
