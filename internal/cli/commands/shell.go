package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/gridview/internal/grid"
	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/persist"
)

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	opts := &ViewOptions{}

	cmd := &cobra.Command{
		Use:   "shell <table>",
		Short: "Drive a viewport from an interactive console",
		Long: `Open a viewport over a table and drive it with console commands.
Every command re-renders the window once it has materialized.

Type :help inside the shell for the list of commands.`,
		Example: `  gridview shell quotes
  gridview shell quotes --state-key quotes/by-exchange`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, args[0], opts)
		},
	}

	addViewFlags(cmd, opts)
	return cmd
}

func runShell(cmd *cobra.Command, table string, opts *ViewOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	sess, err := cc.OpenSession(ctx, table)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if err := opts.apply(ctx, sess); err != nil {
		return err
	}
	top, bottom, left, right, err := opts.window(sess, terminalWidth())
	if err != nil {
		return err
	}

	sh := &shell{
		sess:    sess,
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		profile: termenv.NewOutput(cmd.OutOrStdout()).ColorProfile(),
		timeout: cc.Cfg.Viewport.QueryTimeout,
	}
	if err := sh.scroll(ctx, top, bottom, left, right); err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          table + "> ",
		HistoryFile:     filepath.Join(filepath.Dir(cc.Cfg.StatePath), "shell_history"),
		AutoComplete:    newShellCompleter(sess.Columns()),
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(sh.out, "gridview shell on %s (%d rows)\n", table, sess.Table().Size())
	_, _ = fmt.Fprintln(sh.out, "Type :help for commands, :quit to exit")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		quit, err := sh.exec(ctx, line)
		if err != nil {
			_, _ = fmt.Fprintf(sh.errOut, "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// shell executes console commands against one grid session.
type shell struct {
	sess    *grid.Session
	out     io.Writer
	errOut  io.Writer
	profile termenv.Profile
	timeout time.Duration
}

// exec runs one console line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	fields := strings.Fields(line)
	command, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	top, bottom := sh.sess.Rows()
	var left, right core.VisualIndex
	if w := sh.sess.ColumnWindow(); w != nil {
		left, right = w.Left, w.Right
	}

	switch command {
	case ":quit", ":q", ":exit":
		return true, nil

	case ":help", ":h":
		printShellHelp(sh.out)
		return false, nil

	case ":print", ":p":
		return false, sh.render()

	case ":rows":
		if len(args) != 1 {
			return false, errors.New("usage: :rows a:b")
		}
		a, b, err := parseRange(args[0])
		if err != nil {
			return false, err
		}
		return false, sh.scroll(ctx, a, b, left, right)

	case ":cols":
		if len(args) != 1 {
			return false, errors.New("usage: :cols a:b")
		}
		a, b, err := parseRange(args[0])
		if err != nil {
			return false, err
		}
		return false, sh.scroll(ctx, top, bottom, core.VisualIndex(a), core.VisualIndex(b))

	case ":sort":
		sorts := make([]persist.SortState, 0, len(args))
		for _, spec := range args {
			srt, err := parseSort(sh.sess.Columns(), spec)
			if err != nil {
				return false, err
			}
			sorts = append(sorts, srt)
		}
		if err := sh.sess.SetSorts(ctx, sorts); err != nil {
			return false, err
		}

	case ":filter":
		if rest == "" {
			if err := sh.sess.ClearFilters(ctx); err != nil {
				return false, err
			}
			break
		}
		name, text, err := parseFilter(rest)
		if err != nil {
			return false, err
		}
		if err := sh.sess.SetQuickFilter(ctx, name, text); err != nil {
			return false, err
		}

	case ":hide", ":show":
		if len(args) == 0 {
			return false, fmt.Errorf("usage: %s <column>...", command)
		}
		for _, name := range args {
			var err error
			if command == ":hide" {
				err = sh.sess.HideColumn(name)
			} else {
				err = sh.sess.ShowColumn(name)
			}
			if err != nil {
				return false, err
			}
		}

	case ":move":
		if len(args) != 2 {
			return false, errors.New("usage: :move <from> <to>")
		}
		from, err1 := strconv.Atoi(args[0])
		to, err2 := strconv.Atoi(args[1])
		if err := errors.Join(err1, err2); err != nil {
			return false, fmt.Errorf("invalid column position: %w", err)
		}
		if err := sh.sess.MoveColumn(core.VisualIndex(from), core.VisualIndex(to)); err != nil {
			return false, err
		}

	case ":custom":
		var exprs []string
		if rest != "" {
			exprs = strings.Split(rest, ";")
		}
		if err := sh.sess.SetCustomColumns(ctx, exprs); err != nil {
			return false, err
		}

	case ":save":
		key := rest
		if err := sh.sess.Save(ctx, key); err != nil {
			return false, err
		}
		if key == "" {
			key = sh.sess.Name()
		}
		_, _ = fmt.Fprintf(sh.out, "Saved %s\n", key)
		return false, nil

	case ":load":
		found, err := sh.sess.Restore(ctx, rest)
		if err != nil {
			return false, err
		}
		if !found {
			return false, fmt.Errorf("no saved state %q", rest)
		}

	default:
		return false, fmt.Errorf("unknown command %s (type :help for commands)", command)
	}

	return false, sh.wait(ctx)
}

func (sh *shell) scroll(ctx context.Context, top, bottom int64, left, right core.VisualIndex) error {
	if err := sh.sess.Scroll(top, bottom, left, right); err != nil {
		return err
	}
	return sh.wait(ctx)
}

// wait blocks until the window materializes, then renders it.
func (sh *shell) wait(ctx context.Context) error {
	if sh.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sh.timeout)
		defer cancel()
	}
	if _, err := sh.sess.Wait(ctx); err != nil {
		return err
	}
	return sh.render()
}

func (sh *shell) render() error {
	return renderFrame(sh.out, sh.sess.Frame(), FormatTable, sh.profile)
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  :rows a:b              Show rows a to b
  :cols a:b              Show visual columns a to b
  :sort [Col[:dir]]...   Sort by columns (dir: asc, desc, abs-asc, abs-desc); no args clears
  :filter [Col=text]     Quick filter a column (Col= clears it); no args clears all
  :hide <Col>...         Hide columns
  :show <Col>...         Show hidden columns
  :move <from> <to>      Move a column between visual positions
  :custom [Name=expr;...] Replace custom columns; no args removes them
  :save [key]            Save the viewport state (default key: table name)
  :load [key]            Restore a saved viewport state
  :print                 Render the window again
  :quit                  Exit

Quick filter text:
  ib, !ib          contains / does not contain
  =IBM, null       equals / is null
  >10, <=5, !=3    numeric comparisons
`
	_, _ = fmt.Fprintln(w, help)
}

// newShellCompleter completes commands and column names.
func newShellCompleter(cols []core.ColumnRef) *readline.PrefixCompleter {
	names := make([]readline.PrefixCompleterInterface, 0, len(cols))
	for _, c := range cols {
		names = append(names, readline.PcItem(c.Name))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem(":rows"),
		readline.PcItem(":cols"),
		readline.PcItem(":sort", names...),
		readline.PcItem(":filter", names...),
		readline.PcItem(":hide", names...),
		readline.PcItem(":show", names...),
		readline.PcItem(":move"),
		readline.PcItem(":custom"),
		readline.PcItem(":save"),
		readline.PcItem(":load"),
		readline.PcItem(":print"),
		readline.PcItem(":help"),
		readline.PcItem(":quit"),
	)
}
