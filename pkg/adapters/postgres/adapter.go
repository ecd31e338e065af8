// Package postgres provides the PostgreSQL backend for gridview tables.
//
// Import it with a blank identifier to register the "postgres" adapter:
//
//	import _ "github.com/leapstack-labs/gridview/pkg/adapters/postgres"
package postgres

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/gridview/pkg/adapter"
)

// Adapter implements adapter.Adapter for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates an unconnected PostgreSQL adapter.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{
			Logger:        logger,
			DefaultSchema: "public",
			Placeholder:   squirrel.Dollar,
		},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "postgres"
}

// WatchPath is always empty: a server database has no local file to watch.
func (a *Adapter) WatchPath() string {
	return ""
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", buildPostgresDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	if cfg.Schema != "" {
		a.DefaultSchema = cfg.Schema
	}
	return nil
}

// buildPostgresDSN renders a keyword/value connection string. Options are
// passed through as extra keywords (sslmode, application_name, ...).
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	kv := map[string]string{
		"host":    host,
		"port":    fmt.Sprint(port),
		"dbname":  cfg.Database,
		"sslmode": "disable",
	}
	if cfg.Username != "" {
		kv["user"] = cfg.Username
	}
	if cfg.Password != "" {
		kv["password"] = cfg.Password
	}
	maps.Copy(kv, cfg.Options)

	// host, port, dbname first for readable logs
	order := []string{"host", "port", "dbname"}
	for _, k := range slices.Sorted(maps.Keys(kv)) {
		if !slices.Contains(order, k) {
			order = append(order, k)
		}
	}

	parts := make([]string, 0, len(order))
	for _, k := range order {
		parts = append(parts, k+"="+dsnValue(kv[k]))
	}
	return strings.Join(parts, " ")
}

func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// GetTableMetadata returns the columns and row count of table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table)
}

// ListTables lists the tables and views outside the system schemas.
func (a *Adapter) ListTables(ctx context.Context) ([]adapter.Metadata, error) {
	return a.ListTablesCommon(ctx)
}

// LoadCSV replaces tableName with the contents of a CSV file using COPY.
// All columns are created as TEXT.
func (a *Adapter) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if a.DB == nil {
		return adapter.ErrNotConnected
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	file, err := os.Open(absPath) //nolint:gosec // path comes from the load command
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	headers, err := csv.NewReader(file).Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	if err := a.createTextTable(ctx, tableName, headers); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset file: %w", err)
	}
	if err := a.copyFromCSV(ctx, tableName, file); err != nil {
		return fmt.Errorf("failed to copy data: %w", err)
	}
	return nil
}

func (a *Adapter) createTextTable(ctx context.Context, tableName string, columns []string) error {
	if err := a.Exec(ctx, "DROP TABLE IF EXISTS "+adapter.QuoteTable(tableName)); err != nil {
		return err
	}
	return a.Exec(ctx, createTextTableSQL(tableName, columns))
}

func createTextTableSQL(tableName string, columns []string) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = adapter.QuoteIdent(sanitizeIdentifier(col)) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", adapter.QuoteTable(tableName), strings.Join(defs, ", "))
}

// copyFromCSV streams the file through COPY FROM STDIN on the raw pgx connection.
func (a *Adapter) copyFromCSV(ctx context.Context, tableName string, r io.Reader) error {
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		pgxConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		copySQL := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true)", adapter.QuoteTable(tableName))
		tag, err := pgxConn.Conn().PgConn().CopyFrom(ctx, r, copySQL)
		if err != nil {
			return err
		}
		a.Logger.Debug("copied rows", slog.String("table", tableName), slog.Int64("rows", tag.RowsAffected()))
		return nil
	})
}

// sanitizeIdentifier trims a CSV header and replaces separators with
// underscores. An empty header becomes "column".
func sanitizeIdentifier(name string) string {
	safe := strings.TrimSpace(name)
	safe = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(safe)
	if safe == "" {
		return "column"
	}
	return safe
}

var _ adapter.Adapter = (*Adapter)(nil)
