package core

import "database/sql"

// AdapterConfig is what an adapter connects with. It is built from a
// TargetConfig; Path and Database both carry the target's database so that
// file and network adapters can each read the one they expect.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Column describes one column of a database table as reported by the
// information schema. Position is 1-based.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// TableMetadata describes a database table. RowCount is only filled in by
// GetTableMetadata.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// ColumnRefs returns the table's columns in ordinal order, with model
// indices starting at zero.
func (m *TableMetadata) ColumnRefs() []ColumnRef {
	refs := make([]ColumnRef, len(m.Columns))
	for i, c := range m.Columns {
		refs[i] = ColumnRef{Index: ModelIndex(i), Name: c.Name, Type: c.Type}
	}
	return refs
}

// Rows is the result of an adapter query.
type Rows struct {
	*sql.Rows
}
