package commands

import (
	"context"
	"log/slog"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

// PeekOptions holds options for the peek command.
type PeekOptions struct {
	ViewOptions
	Format string
	Save   string
}

// NewPeekCommand creates the peek command.
func NewPeekCommand() *cobra.Command {
	opts := &PeekOptions{}

	cmd := &cobra.Command{
		Use:   "peek <table>",
		Short: "Print one window of a table",
		Long: `Open a viewport over a table, wait for the window to materialize and
print it once.

Sorts and filters are applied by the database. A saved viewport state can be
restored first with --state-key, and the resulting one kept with --save.`,
		Example: `  # First 50 rows
  gridview peek quotes

  # Rows 100-119 of the first three columns, highest price first
  gridview peek quotes --rows 100:119 --columns 0:2 --sort Price:desc

  # Quick filters, as JSON
  gridview peek quotes --filter Exchange==NYSE --filter "Price=>100" -o json

  # Restore a saved layout
  gridview peek quotes --state-key quotes/by-exchange

  # Keep a layout for later
  gridview peek quotes --sort Exchange --save quotes/by-exchange`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeek(cmd, args[0], opts)
		},
	}

	addViewFlags(cmd, &opts.ViewOptions)
	cmd.Flags().StringVar(&opts.Save, "save", "", "Save the resulting viewport state under this key")
	cmd.Flags().StringVarP(&opts.Format, "output", "o", FormatTable, "Output format (table|json|csv|markdown)")
	_ = cmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{FormatTable, FormatJSON, FormatCSV, FormatMarkdown}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func addViewFlags(cmd *cobra.Command, opts *ViewOptions) {
	cmd.Flags().StringVar(&opts.Rows, "rows", "", "Row range a:b (default 0:49)")
	cmd.Flags().StringVar(&opts.Columns, "columns", "", "Visual column range a:b (default: what fits the terminal)")
	cmd.Flags().StringSliceVar(&opts.Sorts, "sort", nil, "Sort keys Column[:asc|desc|abs-asc|abs-desc]")
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "Quick filters Column=text")
	cmd.Flags().StringVar(&opts.State, "state-key", "", "Saved viewport state to restore first")
}

func runPeek(cmd *cobra.Command, table string, opts *PeekOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), cc.Cfg.Viewport.QueryTimeout)
	defer cancel()

	sess, err := cc.OpenSession(ctx, table)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if err := opts.apply(ctx, sess); err != nil {
		return err
	}

	width := 0
	if opts.Format == FormatTable || opts.Format == "" {
		width = terminalWidth()
	}
	top, bottom, left, right, err := opts.window(sess, width)
	if err != nil {
		return err
	}
	if err := sess.Scroll(top, bottom, left, right); err != nil {
		return err
	}
	if _, err := sess.Wait(ctx); err != nil {
		return err
	}
	if opts.Save != "" {
		if err := sess.Save(ctx, opts.Save); err != nil {
			return err
		}
		cc.Logger.Debug("saved viewport state", slog.String("key", opts.Save))
	}

	out := cmd.OutOrStdout()
	return renderFrame(out, sess.Frame(), opts.Format, termenv.NewOutput(out).ColorProfile())
}
