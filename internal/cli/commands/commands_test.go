package commands

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gridview/internal/grid"
	"github.com/leapstack-labs/gridview/internal/state"
	"github.com/leapstack-labs/gridview/internal/testutil"
	"github.com/leapstack-labs/gridview/pkg/adapters/duckdb"
	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/persist"
	"github.com/leapstack-labs/gridview/pkg/viewport"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		use   string
		flags []string
	}{
		{"peek <table>", []string{"rows", "columns", "sort", "filter", "state-key", "save", "output"}},
		{"browse <table>", []string{"sort", "filter", "state-key"}},
		{"shell <table>", []string{"rows", "columns", "sort", "filter", "state-key"}},
		{"tables", []string{"counts"}},
		{"load <table> <file.csv>", nil},
		{"state", nil},
		{"serve", []string{"port", "no-open", "watch"}},
	}

	cmds := map[string]func() *cobra.Command{
		"peek <table>":            NewPeekCommand,
		"browse <table>":          NewBrowseCommand,
		"shell <table>":           NewShellCommand,
		"tables":                  NewTablesCommand,
		"load <table> <file.csv>": NewLoadCommand,
		"state":                   NewStateCommand,
		"serve":                   NewServeCommand,
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			cmd := cmds[tt.use]()
			assert.Equal(t, tt.use, cmd.Use)
			assert.NotEmpty(t, cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestNewStateCommand_Subcommands(t *testing.T) {
	cmd := NewStateCommand()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "delete"}, names)
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		input      string
		start, end int64
		wantErr    bool
	}{
		{input: "0:49", start: 0, end: 49},
		{input: " 10 : 12 ", start: 10, end: 12},
		{input: "7", start: 7, end: 7},
		{input: "5:4", wantErr: true},
		{input: "-1:3", wantErr: true},
		{input: "a:b", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			start, end, err := parseRange(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestParseSort(t *testing.T) {
	cols := []core.ColumnRef{
		{Index: 0, Name: "Id"},
		{Index: 3, Name: "Price"},
	}

	tests := []struct {
		spec    string
		want    persist.SortState
		wantErr bool
	}{
		{spec: "Id", want: persist.SortState{Column: 0, Direction: core.SortAsc}},
		{spec: "Price:desc", want: persist.SortState{Column: 3, Direction: core.SortDesc}},
		{spec: "Price:ABS-DESC", want: persist.SortState{Column: 3, Direction: core.SortDesc, IsAbs: true}},
		{spec: "Price:abs", want: persist.SortState{Column: 3, Direction: core.SortAsc, IsAbs: true}},
		{spec: "Price:sideways", wantErr: true},
		{spec: "Missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := parseSort(cols, tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseSort(cols, "Missing:asc")
	var notFound *persist.ColumnNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		spec     string
		wantName string
		wantText string
		wantErr  bool
	}{
		{spec: "Stock=ib", wantName: "Stock", wantText: "ib"},
		{spec: "Exchange==NYSE", wantName: "Exchange", wantText: "=NYSE"},
		{spec: "Price=", wantName: "Price", wantText: ""},
		{spec: "=ib", wantErr: true},
		{spec: "Stock", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			name, text, err := parseFilter(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestColumnsThatFit(t *testing.T) {
	assert.Equal(t, 0, columnsThatFit(0))
	assert.Equal(t, 1, columnsThatFit(10))
	assert.Equal(t, 5, columnsThatFit(80))
}

func sampleFrame() grid.Frame {
	return grid.Frame{
		Table:     "quotes",
		State:     "materialized",
		TableSize: 110,
		Top:       0,
		Bottom:    1,
		Columns: []grid.FrameColumn{
			{Index: 2, Name: "Stock", Type: "VARCHAR", Filter: "ib"},
			{Index: 3, Name: "Price", Type: "DOUBLE", Sort: "DESC", Right: true},
		},
		Rows: []grid.FrameRow{
			{Index: 0, Cells: []grid.FrameCell{{Text: "IBM"}, {Text: "-1.50", Color: "#cc3333"}}},
			{Index: 1, Cells: []grid.FrameCell{{Text: "a|b"}, {Pending: true}}},
		},
	}
}

func TestRenderFrame(t *testing.T) {
	tests := []struct {
		format   string
		contains []string
	}{
		{FormatTable, []string{"Stock [ib]", "Price ▼", "IBM", "-1.50", "…", "(rows 0-1 of 110, 2 shown)"}},
		{FormatJSON, []string{`"table": "quotes"`, `"tableSize": 110`, `"text": "IBM"`}},
		{FormatCSV, []string{"Stock,Price\n", "IBM,-1.50\n", "a|b,\n"}},
		{FormatMarkdown, []string{"| Stock [ib] | Price ▼ |", "| --- | ---: |", `| a\|b |`}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, renderFrame(&buf, sampleFrame(), tt.format, termenv.Ascii))
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		require.Error(t, renderFrame(&bytes.Buffer{}, sampleFrame(), "xml", termenv.Ascii))
	})

	t.Run("frame error in footer", func(t *testing.T) {
		f := sampleFrame()
		f.Error = "query failed"
		var buf bytes.Buffer
		require.NoError(t, renderFrame(&buf, f, FormatTable, termenv.Ascii))
		assert.Contains(t, buf.String(), "Error: query failed")
	})

	t.Run("colors only with a color profile", func(t *testing.T) {
		cell := grid.FrameCell{Text: "-1", Color: "#cc3333"}
		assert.Equal(t, "-1", colorize(cell, termenv.Ascii))
		assert.NotEqual(t, "-1", colorize(cell, termenv.TrueColor))
	})
}

func TestRenderStateYAML(t *testing.T) {
	st := &core.PersistedViewportState{
		MovedColumns:  []core.PersistedMove{{From: "Price", To: "Id"}},
		HiddenColumns: []string{"Stock"},
		QuickFilters:  []core.PersistedQuickFilter{{Column: "Exchange", Text: "ib"}},
		AdvancedFilters: []core.PersistedAdvancedFilter{{
			Column: "Price",
			Options: core.PersistedFilterOptions{
				Items:     []core.PersistedFilterItem{{Type: core.CondGreater, Value: "10"}, {Type: core.CondIsNotNull}},
				Operators: []string{"and"},
			},
		}},
		Sorts:         []core.PersistedSort{{Column: "Price", Direction: core.SortDesc, IsAbs: true}},
		CustomColumns: []string{"Double=Price*2"},
	}

	var buf bytes.Buffer
	require.NoError(t, renderStateYAML(&buf, st))
	out := buf.String()

	for _, want := range []string{
		"moves:",
		"from: Price",
		"to: Id",
		"hidden:",
		"- Stock",
		"quick_filters:",
		"Exchange: ib",
		"column: Price",
		"- and",
		"- Price DESC (abs)",
		"- Double=Price*2",
	} {
		assert.Contains(t, out, want)
	}

	buf.Reset()
	require.NoError(t, renderStateYAML(&buf, &core.PersistedViewportState{}))
	assert.Equal(t, "{}\n", buf.String())
}

func TestRenderStateList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderStateList(&buf, nil))
	assert.Equal(t, "No saved states.\n", buf.String())

	buf.Reset()
	require.NoError(t, renderStateList(&buf, []core.StateSummary{
		{Key: "quotes/by-exchange", Table: "quotes", UpdatedAt: time.Now()},
	}))
	assert.Contains(t, buf.String(), "quotes/by-exchange")
	assert.Contains(t, buf.String(), "Updated")
}

func newShell(t *testing.T, rows int) (*shell, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()

	db := duckdb.New(testutil.NewTestLogger(t))
	require.NoError(t, db.Connect(ctx, core.AdapterConfig{Path: ":memory:"}))
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Exec(ctx, `CREATE TABLE quotes (Id BIGINT, Exchange VARCHAR, Stock VARCHAR, Price DOUBLE)`))
	require.NoError(t, db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO quotes
		SELECT i, CASE WHEN i %% 2 = 0 THEN 'NYSE' ELSE 'LSE' END, concat('S', i), i * 1.5 - 10
		FROM range(%d) t(i)`, rows)))

	store, err := state.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sess, err := grid.Open(ctx, db, "quotes", grid.Options{
		Store:     store,
		Scheduler: viewport.Immediate(),
		Logger:    testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	out := new(bytes.Buffer)
	sh := &shell{sess: sess, out: out, errOut: out, profile: termenv.Ascii, timeout: 5 * time.Second}
	require.NoError(t, sh.scroll(ctx, 0, 49, 0, 3))
	return sh, out
}

// execOut runs one shell line and returns what it printed.
func execOut(t *testing.T, sh *shell, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	quit, err := sh.exec(context.Background(), line)
	require.NoError(t, err, line)
	assert.False(t, quit)
	return out.String()
}

func TestShell_Exec(t *testing.T) {
	sh, out := newShell(t, 20)
	assert.Contains(t, out.String(), "(rows 0-49 of 20, 20 shown)")

	t.Run("sort", func(t *testing.T) {
		got := execOut(t, sh, out, ":sort Id:desc")
		assert.Contains(t, got, "Id ▼")
		assert.Less(t, strings.Index(got, "S19"), strings.Index(got, "S18"))
	})

	t.Run("rows", func(t *testing.T) {
		got := execOut(t, sh, out, ":rows 0:1")
		assert.Contains(t, got, "(rows 0-1 of 20, 2 shown)")
		assert.NotContains(t, got, "S17")
	})

	t.Run("filter", func(t *testing.T) {
		got := execOut(t, sh, out, ":filter Exchange==NYSE")
		assert.Contains(t, got, "Exchange [=NYSE]")
		assert.Contains(t, got, "S18")
		assert.NotContains(t, got, "S19")

		got = execOut(t, sh, out, ":filter")
		assert.Contains(t, got, "S19")
	})

	t.Run("hide and show", func(t *testing.T) {
		got := execOut(t, sh, out, ":hide Price")
		assert.NotContains(t, got, "Price")

		got = execOut(t, sh, out, ":show Price")
		assert.Contains(t, got, "Price")
	})

	t.Run("save and load", func(t *testing.T) {
		got := execOut(t, sh, out, ":save quotes/desc")
		assert.Equal(t, "Saved quotes/desc\n", got)

		execOut(t, sh, out, ":sort")
		got = execOut(t, sh, out, ":load quotes/desc")
		assert.Contains(t, got, "Id ▼")
	})

	t.Run("help", func(t *testing.T) {
		assert.Contains(t, execOut(t, sh, out, ":help"), ":rows a:b")
	})

	t.Run("errors", func(t *testing.T) {
		for _, line := range []string{
			":bogus",
			":rows",
			":rows 9:1",
			":sort Missing",
			":move 1",
			":move a b",
			":hide",
			":load nothing-saved-here",
			":custom Bad=no_such_function(Price)",
		} {
			_, err := sh.exec(context.Background(), line)
			assert.Error(t, err, line)
		}
	})

	t.Run("quit", func(t *testing.T) {
		for _, line := range []string{":quit", ":q", ":exit"} {
			quit, err := sh.exec(context.Background(), line)
			require.NoError(t, err)
			assert.True(t, quit, line)
		}
	})

	t.Run("blank line", func(t *testing.T) {
		assert.Empty(t, execOut(t, sh, out, "   "))
	})
}
