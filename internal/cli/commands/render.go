package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/muesli/termenv"

	"github.com/leapstack-labs/gridview/internal/grid"
)

// Output formats understood by renderFrame.
const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// renderFrame writes a frame in the given format. Colors are applied only
// in table format and only when profile supports them.
func renderFrame(w io.Writer, f grid.Frame, format string, profile termenv.Profile) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	case FormatCSV:
		return renderCSV(w, f)
	case "md", FormatMarkdown:
		return renderMarkdown(w, f)
	case "", FormatTable:
		return renderTable(w, f, profile)
	default:
		return fmt.Errorf("unknown output format %q (expected table, json, csv or markdown)", format)
	}
}

func renderTable(w io.Writer, f grid.Frame, profile termenv.Profile) error {
	if len(f.Columns) == 0 {
		_, _ = fmt.Fprintln(w, "(no columns)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"#"}
	configs := []table.ColumnConfig{{Number: 1, Align: text.AlignRight}}
	for i, c := range f.Columns {
		header = append(header, headerLabel(c))
		if c.Right {
			configs = append(configs, table.ColumnConfig{Number: i + 2, Align: text.AlignRight})
		}
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	for _, r := range f.Rows {
		row := table.Row{r.Index}
		for _, cell := range r.Cells {
			row = append(row, colorize(cell, profile))
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintln(w, frameFooter(f))
	return nil
}

func headerLabel(c grid.FrameColumn) string {
	label := c.Name
	switch {
	case strings.HasSuffix(c.Sort, "ASC"):
		label += " ▲"
	case strings.HasSuffix(c.Sort, "DESC"):
		label += " ▼"
	}
	if c.Filter != "" {
		label += " [" + c.Filter + "]"
	}
	return label
}

func colorize(cell grid.FrameCell, profile termenv.Profile) string {
	if cell.Pending {
		return "…"
	}
	if cell.Color == "" || profile == termenv.Ascii {
		return cell.Text
	}
	return termenv.String(cell.Text).Foreground(profile.Color(cell.Color)).String()
}

func frameFooter(f grid.Frame) string {
	footer := fmt.Sprintf("(rows %d-%d of %d, %d shown)", f.Top, f.Bottom, f.TableSize, len(f.Rows))
	if f.Error != "" {
		footer += "\nError: " + f.Error
	}
	return footer
}

func renderCSV(w io.Writer, f grid.Frame) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range f.Rows {
		values := make([]string, len(r.Cells))
		for i, cell := range r.Cells {
			values[i] = cell.Text
		}
		if err := cw.Write(values); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderMarkdown(w io.Writer, f grid.Frame) error {
	if len(f.Columns) == 0 {
		_, _ = fmt.Fprintln(w, "(no columns)")
		return nil
	}

	names := make([]string, len(f.Columns))
	seps := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = headerLabel(c)
		seps[i] = "---"
		if c.Right {
			seps[i] = "---:"
		}
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(names, " | "))
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, r := range f.Rows {
		values := make([]string, len(r.Cells))
		for i, cell := range r.Cells {
			values[i] = strings.ReplaceAll(cell.Text, "|", `\|`)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}
