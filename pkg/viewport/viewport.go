// Package viewport tracks a requested window of rows × columns over a
// core.RemoteTable, fetches it through a coalescing scheduler and folds
// pushed delta events into the materialized result.
//
// Every request is tagged with a generation. Results that arrive for a
// superseded generation are dropped, so the last request always wins
// regardless of the order in which remote calls complete.
package viewport

import (
	"errors"
	"fmt"
	"slices"

	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/rangeset"
)

// DefaultMaxRows bounds the height of a single viewport request.
const DefaultMaxRows = 10_000

// ErrClosed is returned by operations on a closed controller.
var ErrClosed = errors.New("viewport controller is closed")

// State is the controller's lifecycle state.
type State int

// Controller states.
const (
	Unbound State = iota
	Pending
	Materialized
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Pending:
		return "pending"
	case Materialized:
		return "materialized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Viewport is a requested window: rows [StartRow, EndRow] for Columns.
// Column order is fetch order, not display order.
type Viewport struct {
	StartRow int64
	EndRow   int64
	Columns  []core.ColumnRef
}

// Height returns the number of rows requested.
func (v Viewport) Height() int64 { return v.EndRow - v.StartRow + 1 }

// Rows returns the requested row range as a set.
func (v Viewport) Rows() rangeset.RangeSet {
	s, err := rangeset.OfRange(v.StartRow, v.EndRow)
	if err != nil {
		return rangeset.Empty()
	}
	return s
}

// Equal reports whether both viewports request the same rows and columns.
func (v Viewport) Equal(o Viewport) bool {
	return v.StartRow == o.StartRow && v.EndRow == o.EndRow && slices.Equal(v.Columns, o.Columns)
}

// InvalidViewportError is returned by SetViewport for a malformed row range.
type InvalidViewportError struct {
	StartRow int64
	EndRow   int64
	MaxRows  int64
}

func (e *InvalidViewportError) Error() string {
	switch {
	case e.StartRow < 0:
		return fmt.Sprintf("invalid viewport [%d, %d]: start row is negative", e.StartRow, e.EndRow)
	case e.EndRow < e.StartRow:
		return fmt.Sprintf("invalid viewport [%d, %d]: end row is before start row", e.StartRow, e.EndRow)
	default:
		return fmt.Sprintf("invalid viewport [%d, %d]: height exceeds %d rows", e.StartRow, e.EndRow, e.MaxRows)
	}
}

func validate(v Viewport, maxRows int64) error {
	// EndRow-StartRow cannot overflow once both bounds are ordered and non-negative
	if v.StartRow < 0 || v.EndRow < v.StartRow || v.EndRow-v.StartRow >= maxRows {
		return &InvalidViewportError{StartRow: v.StartRow, EndRow: v.EndRow, MaxRows: maxRows}
	}
	return nil
}
