package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/gridview/internal/grid"
	"github.com/leapstack-labs/gridview/pkg/columns"
	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/viewport"
)

// NewBrowseCommand creates the browse command.
func NewBrowseCommand() *cobra.Command {
	opts := &ViewOptions{}

	cmd := &cobra.Command{
		Use:   "browse <table>",
		Short: "Scroll through a table in the terminal",
		Long: `Open an interactive viewport over a table. Only the rows and columns on
screen (plus a buffer) are fetched; the window follows as you scroll and
refreshes when the table changes.

Keys:
  ↑/↓ PgUp/PgDn  scroll rows        ←/→  select column
  < >            move column        x    hide column
  s / S          cycle sort / add   f    quick filter
  w              save state         q    quit`,
		Example: `  gridview browse quotes
  gridview browse quotes --state-key quotes/by-exchange`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, args[0], opts)
		},
	}

	addViewFlags(cmd, opts)
	return cmd
}

func runBrowse(cmd *cobra.Command, table string, opts *ViewOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sess, err := cc.OpenSession(ctx, table)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if err := opts.apply(ctx, sess); err != nil {
		return err
	}
	top, _, _, _, err := opts.window(sess, 0)
	if err != nil {
		return err
	}

	m := newBrowseModel(ctx, sess)
	m.top = top
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx),
		tea.WithOutput(cmd.OutOrStdout()), tea.WithInput(cmd.InOrStdin()))

	l := sess.Subscribe(func(viewport.Change) { p.Send(changedMsg{}) })
	defer l.Close()

	_, err = p.Run()
	return err
}

type changedMsg struct{}

type errMsg struct{ err error }

type infoMsg string

type browseKeys struct {
	Up, Down, PageUp, PageDown key.Binding
	Left, Right                key.Binding
	MoveLeft, MoveRight        key.Binding
	Hide, Sort, AddSort        key.Binding
	Filter, Save, Help, Quit   key.Binding
}

func defaultBrowseKeys() browseKeys {
	return browseKeys{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:    key.NewBinding(key.WithKeys("pgup", "b"), key.WithHelp("pgup", "page up")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown", " "), key.WithHelp("pgdn", "page down")),
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev column")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next column")),
		MoveLeft:  key.NewBinding(key.WithKeys("<"), key.WithHelp("<", "move left")),
		MoveRight: key.NewBinding(key.WithKeys(">"), key.WithHelp(">", "move right")),
		Hide:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "hide")),
		Sort:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		AddSort:   key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "add sort")),
		Filter:    key.NewBinding(key.WithKeys("f", "/"), key.WithHelp("f", "filter")),
		Save:      key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k browseKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Left, k.Right, k.Sort, k.Filter, k.Save, k.Help, k.Quit}
}

func (k browseKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Left, k.Right, k.MoveLeft, k.MoveRight, k.Hide},
		{k.Sort, k.AddSort, k.Filter, k.Save},
		{k.Help, k.Quit},
	}
}

type inputMode int

const (
	inputNone inputMode = iota
	inputFilter
	inputSave
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#d73a49"))
)

// browseModel is the bubbletea model of the browse command.
type browseModel struct {
	ctx  context.Context
	sess *grid.Session

	keys  browseKeys
	help  help.Model
	input textinput.Model
	mode  inputMode

	width, height int
	top           int64
	left          int
	cursor        int

	frame grid.Frame
	info  string
	err   error
}

func newBrowseModel(ctx context.Context, sess *grid.Session) *browseModel {
	in := textinput.New()
	in.CharLimit = 256
	return &browseModel{
		ctx:    ctx,
		sess:   sess,
		keys:   defaultBrowseKeys(),
		help:   help.New(),
		input:  in,
		width:  80,
		height: 24,
	}
}

func (m *browseModel) Init() tea.Cmd {
	return m.scroll()
}

// pageRows is the number of table rows that fit on screen.
func (m *browseModel) pageRows() int64 {
	return int64(max(1, m.height-4))
}

func (m *browseModel) pageColumns() int {
	return max(1, columnsThatFit(m.width))
}

// scroll clamps the position and requests the window it shows. left and
// cursor index the visible columns; the request is made in visual positions.
func (m *browseModel) scroll() tea.Cmd {
	size := m.sess.Table().Size()
	m.top = max(0, min(m.top, size-m.pageRows()))

	vis := m.sess.VisualColumns()
	n := len(vis)
	m.cursor = max(0, min(m.cursor, n-1))
	page := m.pageColumns()
	if m.cursor < m.left {
		m.left = m.cursor
	}
	if m.cursor >= m.left+page {
		m.left = m.cursor - page + 1
	}
	m.left = max(0, m.left)

	top, bottom := m.top, m.top+m.pageRows()-1
	var left, right core.VisualIndex
	if n > 0 {
		moves := m.sess.Layout().Moves
		left = columns.VisualIndexOf(vis[m.left].Index, moves)
		right = columns.VisualIndexOf(vis[min(m.left+page, n)-1].Index, moves)
	}
	return m.run(func() error { return m.sess.Scroll(top, bottom, left, right) })
}

// run executes fn off the UI goroutine.
func (m *browseModel) run(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

// cursorColumn returns the selected column.
func (m *browseModel) cursorColumn() (core.ColumnRef, bool) {
	cols := m.sess.VisualColumns()
	if m.cursor < 0 || m.cursor >= len(cols) {
		return core.ColumnRef{}, false
	}
	return cols[m.cursor], true
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, m.scroll()

	case changedMsg:
		m.frame = m.sess.Frame()
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case infoMsg:
		m.info = string(msg)
		return m, nil

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *browseModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err, m.info = nil, ""
	ctx := m.ctx

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.top--
	case key.Matches(msg, m.keys.Down):
		m.top++
	case key.Matches(msg, m.keys.PageUp):
		m.top -= m.pageRows()
	case key.Matches(msg, m.keys.PageDown):
		m.top += m.pageRows()
	case key.Matches(msg, m.keys.Left):
		m.cursor--
	case key.Matches(msg, m.keys.Right):
		m.cursor++
	case key.Matches(msg, m.keys.MoveLeft), key.Matches(msg, m.keys.MoveRight):
		to := m.cursor + 1
		if key.Matches(msg, m.keys.MoveLeft) {
			to = m.cursor - 1
		}
		vis := m.sess.VisualColumns()
		if m.cursor >= len(vis) || to < 0 || to >= len(vis) {
			return m, nil
		}
		moves := m.sess.Layout().Moves
		from := columns.VisualIndexOf(vis[m.cursor].Index, moves)
		if err := m.sess.MoveColumn(from, columns.VisualIndexOf(vis[to].Index, moves)); err != nil {
			m.err = err
			return m, nil
		}
		m.cursor = to
	case key.Matches(msg, m.keys.Hide):
		if c, ok := m.cursorColumn(); ok {
			if err := m.sess.HideColumn(c.Name); err != nil {
				m.err = err
			}
		}
	case key.Matches(msg, m.keys.Sort), key.Matches(msg, m.keys.AddSort):
		c, ok := m.cursorColumn()
		if !ok {
			return m, nil
		}
		multi := key.Matches(msg, m.keys.AddSort)
		return m, m.run(func() error { return m.sess.ToggleSort(ctx, c.Name, multi) })
	case key.Matches(msg, m.keys.Filter):
		c, ok := m.cursorColumn()
		if !ok {
			return m, nil
		}
		m.mode = inputFilter
		m.input.Prompt = c.Name + " filter: "
		m.input.SetValue(m.sess.State().QuickFilters[c.Index])
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Save):
		m.mode = inputSave
		m.input.Prompt = "save as: "
		m.input.SetValue(m.sess.Name())
		return m, m.input.Focus()
	default:
		return m, nil
	}
	return m, m.scroll()
}

func (m *browseModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := m.ctx
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = inputNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		mode, value := m.mode, m.input.Value()
		m.mode = inputNone
		m.input.Blur()
		if mode == inputSave {
			return m, func() tea.Msg {
				if err := m.sess.Save(ctx, value); err != nil {
					return errMsg{err}
				}
				return infoMsg("saved " + value)
			}
		}
		c, ok := m.cursorColumn()
		if !ok {
			return m, nil
		}
		return m, m.run(func() error { return m.sess.SetQuickFilter(ctx, c.Name, value) })
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *browseModel) View() string {
	var b strings.Builder
	f := m.frame

	width := columnWidth - 1
	var selected core.ModelIndex = -1
	if c, ok := m.cursorColumn(); ok {
		selected = c.Index
	}

	header := make([]string, 0, len(f.Columns))
	for _, c := range f.Columns {
		style := headerStyle
		if c.Index == selected {
			style = selectedStyle
		}
		header = append(header, style.Render(pad(headerLabel(c), width, false)))
	}
	b.WriteString(strings.Join(header, " "))
	b.WriteString("\n")

	for _, r := range f.Rows {
		cells := make([]string, 0, len(r.Cells))
		for i, cell := range r.Cells {
			right := i < len(f.Columns) && f.Columns[i].Right
			text := pad(cell.Text, width, right)
			if cell.Pending {
				text = pad("…", width, right)
			}
			if cell.Color != "" {
				text = lipgloss.NewStyle().Foreground(lipgloss.Color(cell.Color)).Render(text)
			}
			cells = append(cells, text)
		}
		b.WriteString(strings.Join(cells, " "))
		b.WriteString("\n")
	}

	status := fmt.Sprintf("%s  rows %d-%d of %d  %s", f.Table, f.Top, f.Bottom, f.TableSize, f.State)
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")

	switch {
	case m.mode != inputNone:
		b.WriteString(m.input.View())
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	case f.Error != "":
		b.WriteString(errorStyle.Render("Error: " + f.Error))
	case m.info != "":
		b.WriteString(statusStyle.Render(m.info))
	default:
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

// pad fits s into width display cells, truncating with an ellipsis.
func pad(s string, width int, right bool) string {
	if lipgloss.Width(s) > width {
		r := []rune(s)
		for len(r) > 0 && lipgloss.Width(string(r)) > width-1 {
			r = r[:len(r)-1]
		}
		s = string(r) + "…"
	}
	gap := strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
	if right {
		return gap + s
	}
	return s + gap
}
