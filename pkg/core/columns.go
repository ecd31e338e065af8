package core

import "fmt"

// ModelIndex is a column's identity assigned by the remote schema. It is
// stable while the schema is unchanged; persisted state refers to columns
// by name instead.
type ModelIndex int

// VisualIndex is a column's on-screen position after user reordering.
// Hidden columns still occupy a visual position.
type VisualIndex int

// ColumnRef identifies a column of a remote table.
type ColumnRef struct {
	Index ModelIndex `json:"index"`
	Name  string     `json:"name"`
	Type  string     `json:"type"` // opaque type tag, only used for formatting
}

func (c ColumnRef) String() string {
	return fmt.Sprintf("%s#%d", c.Name, c.Index)
}

// FindColumn returns the column with the given name.
func FindColumn(cols []ColumnRef, name string) (ColumnRef, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnRef{}, false
}

// FindColumnByIndex returns the column with the given model index.
func FindColumnByIndex(cols []ColumnRef, idx ModelIndex) (ColumnRef, bool) {
	if int(idx) >= 0 && int(idx) < len(cols) && cols[idx].Index == idx {
		return cols[idx], true
	}
	for _, c := range cols {
		if c.Index == idx {
			return c, true
		}
	}
	return ColumnRef{}, false
}

// SortDirection is the direction of a sort.
type SortDirection string

// SortDirection constants.
const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// Sort describes one sort key handed to the remote side.
type Sort struct {
	Column    ColumnRef     `json:"column"`
	Direction SortDirection `json:"direction"`
	IsAbs     bool          `json:"isAbs"`
}

// Filter is an opaque predicate on a column. The engine never evaluates it;
// the remote table decides how to interpret it.
//
// Expression holds quick-filter text. Conditions, Operators, Values and
// Invert hold an advanced filter: conditions joined by Operators ("and",
// "or"), and/or a list of selected values.
type Filter struct {
	Column     ColumnRef   `json:"column"`
	Expression string      `json:"expression,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Operators  []string    `json:"operators,omitempty"`
	Values     []any       `json:"values,omitempty"`
	Invert     bool        `json:"invert,omitempty"`
}

// Condition is one clause of an advanced filter, e.g. {Type: "gt", Value: "10"}.
type Condition struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Condition types understood by the bundled remote tables.
const (
	CondEquals     = "eq"
	CondNotEquals  = "notEq"
	CondGreater    = "gt"
	CondGreaterEq  = "gte"
	CondLess       = "lt"
	CondLessEq     = "lte"
	CondContains   = "contains"
	CondStartsWith = "startsWith"
	CondEndsWith   = "endsWith"
	CondIsNull     = "isNull"
	CondIsNotNull  = "isNotNull"
)
