package core

import "context"

// RemoteTable is the capability the viewport engine consumes.
// Implementations own transport, timeouts and retries.
type RemoteTable interface {
	// Columns returns the current schema, including custom columns.
	Columns() []ColumnRef

	// Size returns the current row count after filters.
	Size() int64

	// SetViewport opens a window over [startRow, endRow] for the given columns.
	SetViewport(ctx context.Context, startRow, endRow int64, cols []ColumnRef) (ViewportHandle, error)

	// ApplySort replaces the sort order.
	ApplySort(ctx context.Context, sorts []Sort) error

	// ApplyFilter replaces the filter set.
	ApplyFilter(ctx context.Context, filters []Filter) error

	// ApplyCustomColumns replaces the custom column expressions ("Name=expr").
	ApplyCustomColumns(ctx context.Context, exprs []string) error
}

// ViewportHandle is an open window on a RemoteTable.
type ViewportHandle interface {
	// OnUpdate registers fn for every delta pushed for this window.
	// The returned function removes the registration.
	OnUpdate(fn func(DeltaEvent)) (unsubscribe func())

	// Snapshot fetches the rows currently in the window.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Close releases the window. Further deltas are not delivered.
	Close() error
}

// Snapshot is the initial content of a viewport.
// Rows[i] is the row at index Offset+i.
type Snapshot struct {
	Offset  int64
	Rows    []RowAccessor
	Columns []ColumnRef
}

// RowAccessor reads one row of a snapshot or delta.
type RowAccessor interface {
	Get(col ColumnRef) any
	Format(col ColumnRef) CellFormat
}

// CellFormat carries rendering hints for a cell.
type CellFormat struct {
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	NumberFormat    string `json:"numberFormat,omitempty"`
}
