// Package adapter defines the database contract behind gridview's SQL
// remote tables.
//
// Concrete adapters live in pkg/adapters/ and register themselves from
// init(); callers pick one by the target.type configured in gridview.yaml.
package adapter

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"

	"github.com/leapstack-labs/gridview/pkg/core"
)

// Type aliases for the shared metadata types in pkg/core.
type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)

// Sentinel errors shared by all adapters.
var (
	ErrNotConnected  = errors.New("database connection not established")
	ErrTableNotFound = errors.New("table not found")
)

// Adapter is a connection to one database.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, query string, args ...any) error

	// Query executes a statement that returns rows. The caller closes them.
	Query(ctx context.Context, query string, args ...any) (*Rows, error)

	// QueryValue scans the single value of a one-row result into dest.
	QueryValue(ctx context.Context, dest any, query string, args ...any) error

	// GetTableMetadata retrieves columns and row count of a table.
	// A missing table yields an error wrapping ErrTableNotFound.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// ListTables lists user tables and views.
	ListTables(ctx context.Context) ([]Metadata, error)

	// LoadCSV creates or replaces a table from a CSV file.
	LoadCSV(ctx context.Context, tableName string, filePath string) error

	// DialectName returns the adapter's SQL dialect name.
	DialectName() string

	// Placeholders returns the bind parameter style for squirrel builders.
	Placeholders() squirrel.PlaceholderFormat

	// WatchPath returns the database file backing the connection, or ""
	// when the database is not a local file.
	WatchPath() string
}

type qualifier interface {
	QualifiedName(t Metadata) string
}

// DisplayName renders t the way a user would type it: without the schema
// when it is the adapter's default one.
func DisplayName(a Adapter, t Metadata) string {
	if q, ok := a.(qualifier); ok {
		return q.QualifiedName(t)
	}
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}
