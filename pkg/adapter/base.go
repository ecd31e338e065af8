package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/leapstack-labs/gridview/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed it in concrete adapters and set DefaultSchema and Placeholder.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger

	// DefaultSchema is used for unqualified table names.
	DefaultSchema string
	// Placeholder is the bind parameter style of the dialect.
	Placeholder squirrel.PlaceholderFormat
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB == nil {
		return nil
	}
	b.logger().Debug("closing database connection")
	err := b.DB.Close()
	b.DB = nil
	return err
}

// Exec executes a statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, query string, args ...any) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	if _, err := b.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a statement that returns rows.
func (b *BaseSQLAdapter) Query(ctx context.Context, query string, args ...any) (*core.Rows, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &core.Rows{Rows: rows}, nil
}

// QueryValue scans the single value of a one-row result into dest.
func (b *BaseSQLAdapter) QueryValue(ctx context.Context, dest any, query string, args ...any) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	if err := b.DB.QueryRowContext(ctx, query, args...).Scan(dest); err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Placeholders returns the bind parameter style, defaulting to "?".
func (b *BaseSQLAdapter) Placeholders() squirrel.PlaceholderFormat {
	if b.Placeholder == nil {
		return squirrel.Question
	}
	return b.Placeholder
}

// WatchPath returns the configured database file, if any.
func (b *BaseSQLAdapter) WatchPath() string {
	if b.Cfg.Path == "" || b.Cfg.Path == ":memory:" {
		return ""
	}
	return b.Cfg.Path
}

// ParseQualifiedName splits a table reference into schema and name.
func ParseQualifiedName(table, defaultSchema string) (schema, name string) {
	if parts := strings.SplitN(table, ".", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, table
}

// GetTableMetadataCommon reads a table's columns from information_schema
// and counts its rows.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, table string) (*core.TableMetadata, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	schema, tableName := ParseQualifiedName(table, b.DefaultSchema)

	query, args, err := squirrel.
		Select("column_name", "data_type", "is_nullable", "ordinal_position").
		From("information_schema.columns").
		Where(squirrel.Eq{"table_schema": schema, "table_name": tableName}).
		OrderBy("ordinal_position").
		PlaceholderFormat(b.Placeholders()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata query: %w", err)
	}

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.Column
	for rows.Next() {
		var col core.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}

	countQuery := "SELECT COUNT(*) FROM " + QuoteQualified(schema, tableName)
	var rowCount int64
	if err := b.DB.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		b.logger().Warn("failed to count rows", slog.String("table", table), slog.String("error", err.Error()))
		rowCount = 0
	}

	return &core.TableMetadata{
		Schema:   schema,
		Name:     tableName,
		Columns:  columns,
		RowCount: rowCount,
	}, nil
}

// ListTablesCommon lists base tables and views outside the system schemas.
func (b *BaseSQLAdapter) ListTablesCommon(ctx context.Context) ([]core.TableMetadata, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	query, args, err := squirrel.
		Select("table_schema", "table_name").
		From("information_schema.tables").
		Where(squirrel.NotEq{"table_schema": []string{"information_schema", "pg_catalog"}}).
		OrderBy("table_schema", "table_name").
		PlaceholderFormat(b.Placeholders()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build table list query: %w", err)
	}

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []core.TableMetadata
	for rows.Next() {
		var t core.TableMetadata
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}

// QualifiedName renders a table for display, omitting the default schema.
func (b *BaseSQLAdapter) QualifiedName(t core.TableMetadata) string {
	if t.Schema == "" || t.Schema == b.DefaultSchema {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// QuoteIdent quotes an identifier with double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteQualified quotes schema and name as "schema"."name".
// An empty schema yields just the quoted name.
func QuoteQualified(schema, name string) string {
	if schema == "" {
		return QuoteIdent(name)
	}
	return QuoteIdent(schema) + "." + QuoteIdent(name)
}

// QuoteTable quotes a possibly schema-qualified table reference.
func QuoteTable(table string) string {
	schema, name := ParseQualifiedName(table, "")
	return QuoteQualified(schema, name)
}
