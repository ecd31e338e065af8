package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/gridview/pkg/adapter"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	var counts bool

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables in the target database",
		Example: `  gridview tables
  gridview tables --counts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTables(cmd, counts)
		},
	}

	cmd.Flags().BoolVar(&counts, "counts", false, "Include row counts")
	return cmd
}

func runTables(cmd *cobra.Command, counts bool) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	tables, err := cc.Adapter.ListTables(ctx)
	if err != nil {
		return err
	}

	if counts {
		for i := range tables {
			name := adapter.DisplayName(cc.Adapter, tables[i])
			meta, err := cc.Adapter.GetTableMetadata(ctx, name)
			if err != nil {
				return err
			}
			tables[i].RowCount = meta.RowCount
			tables[i].Columns = meta.Columns
		}
	}

	return renderTables(cmd.OutOrStdout(), cc.Adapter, tables, counts)
}

func renderTables(w io.Writer, db adapter.Adapter, tables []adapter.Metadata, counts bool) error {
	if len(tables) == 0 {
		_, _ = fmt.Fprintln(w, "No tables found.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if counts {
		t.AppendHeader(table.Row{"Table", "Columns", "Rows"})
	} else {
		t.AppendHeader(table.Row{"Table"})
	}

	for _, tbl := range tables {
		name := adapter.DisplayName(db, tbl)
		if counts {
			t.AppendRow(table.Row{name, len(tbl.Columns), tbl.RowCount})
		} else {
			t.AppendRow(table.Row{name})
		}
	}
	t.Render()
	return nil
}
