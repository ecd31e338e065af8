package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <table> <file.csv>",
		Short: "Create or replace a table from a CSV file",
		Long: `Create or replace a table in the target database from a CSV file with a
header row. Column types are inferred by the database.`,
		Example: `  gridview load quotes data/quotes.csv`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args[0], args[1])
		},
	}
}

func runLoad(cmd *cobra.Command, table, file string) error {
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("cannot read %s: %w", file, err)
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if err := cc.Adapter.LoadCSV(ctx, table, file); err != nil {
		return err
	}

	meta, err := cc.Adapter.GetTableMetadata(ctx, table)
	if err != nil {
		return err
	}
	cc.Logger.Debug("table loaded", slog.String("table", table), slog.String("file", file))

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d rows (%d columns) into %s\n",
		meta.RowCount, len(meta.Columns), table)
	return nil
}
