package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/gridview/pkg/core"
)

// NewStateCommand creates the state command and its subcommands.
func NewStateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Manage saved viewport states",
		Long: `Saved viewport states hold column moves, hidden columns, filters, sorts
and custom columns, referenced by column name. They are written by the
dashboard, by browse (w) and by shell (:save).`,
	}

	cmd.AddCommand(newStateListCommand())
	cmd.AddCommand(newStateShowCommand())
	cmd.AddCommand(newStateDeleteCommand())
	return cmd
}

func newStateListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved viewport states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutAdapter(cmd)
			closeStore, err := cc.OpenStore()
			if err != nil {
				return err
			}
			defer closeStore()

			states, err := cc.Store.ListViewportStates(cmd.Context())
			if err != nil {
				return err
			}
			return renderStateList(cmd.OutOrStdout(), states)
		},
	}
}

func newStateShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print a saved viewport state as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContextWithoutAdapter(cmd)
			closeStore, err := cc.OpenStore()
			if err != nil {
				return err
			}
			defer closeStore()

			st, err := cc.Store.LoadViewportState(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if st == nil {
				return fmt.Errorf("no saved state %q", args[0])
			}
			return renderStateYAML(cmd.OutOrStdout(), st)
		},
	}
}

func newStateDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>...",
		Aliases: []string{"rm"},
		Short:   "Delete saved viewport states",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContextWithoutAdapter(cmd)
			closeStore, err := cc.OpenStore()
			if err != nil {
				return err
			}
			defer closeStore()

			for _, key := range args {
				if err := cc.Store.DeleteViewportState(cmd.Context(), key); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)
			}
			return nil
		},
	}
}

func renderStateList(w io.Writer, states []core.StateSummary) error {
	if len(states) == 0 {
		_, _ = fmt.Fprintln(w, "No saved states.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Key", "Table", "Updated"})
	for _, s := range states {
		t.AppendRow(table.Row{s.Key, s.Table, s.UpdatedAt.Local().Format("2006-01-02 15:04:05")})
	}
	t.Render()
	return nil
}

// stateDoc mirrors core.PersistedViewportState with YAML field names.
type stateDoc struct {
	Moves         []moveDoc         `yaml:"moves,omitempty"`
	Hidden        []string          `yaml:"hidden,omitempty"`
	QuickFilters  map[string]string `yaml:"quick_filters,omitempty"`
	Filters       []filterDoc       `yaml:"filters,omitempty"`
	Sorts         []string          `yaml:"sorts,omitempty"`
	CustomColumns []string          `yaml:"custom_columns,omitempty"`
}

type moveDoc struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type filterDoc struct {
	Column     string   `yaml:"column"`
	Conditions []string `yaml:"conditions,omitempty"`
	Operators  []string `yaml:"operators,omitempty"`
	Invert     bool     `yaml:"invert,omitempty"`
	Values     []any    `yaml:"values,omitempty"`
}

func renderStateYAML(w io.Writer, st *core.PersistedViewportState) error {
	doc := stateDoc{
		Hidden:        st.HiddenColumns,
		CustomColumns: st.CustomColumns,
	}
	for _, m := range st.MovedColumns {
		doc.Moves = append(doc.Moves, moveDoc{From: m.From, To: m.To})
	}
	for _, q := range st.QuickFilters {
		if doc.QuickFilters == nil {
			doc.QuickFilters = make(map[string]string)
		}
		doc.QuickFilters[q.Column] = q.Text
	}
	for _, f := range st.AdvancedFilters {
		fd := filterDoc{
			Column:    f.Column,
			Operators: f.Options.Operators,
			Invert:    f.Options.InvertSelection,
			Values:    f.Options.SelectedValues,
		}
		for _, it := range f.Options.Items {
			fd.Conditions = append(fd.Conditions, strings.TrimSpace(it.Type + " " + it.Value))
		}
		doc.Filters = append(doc.Filters, fd)
	}
	for _, s := range st.Sorts {
		label := s.Column + " " + string(s.Direction)
		if s.IsAbs {
			label += " (abs)"
		}
		doc.Sorts = append(doc.Sorts, label)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
