package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/leapstack-labs/gridview/internal/grid"
	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/persist"
	"golang.org/x/term"
)

// ViewOptions are the viewport flags shared by peek, shell and browse.
type ViewOptions struct {
	Rows    string
	Columns string
	Sorts   []string
	Filters []string
	State   string
}

// parseRange parses "a:b" (inclusive) or a single index "a".
func parseRange(s string) (int64, int64, error) {
	s = strings.TrimSpace(s)
	lo, hi, found := strings.Cut(s, ":")
	start, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range %q: %w", s, err)
	}
	end := start
	if found {
		if end, err = strconv.ParseInt(strings.TrimSpace(hi), 10, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid range %q: %w", s, err)
		}
	}
	if start < 0 || end < start {
		return 0, 0, fmt.Errorf("invalid range %q: expected 0 <= start <= end", s)
	}
	return start, end, nil
}

// parseSort parses "Name", "Name:desc" or "Name:abs-desc".
func parseSort(cols []core.ColumnRef, spec string) (persist.SortState, error) {
	name, dir, _ := strings.Cut(spec, ":")
	c, ok := core.FindColumn(cols, strings.TrimSpace(name))
	if !ok {
		return persist.SortState{}, &persist.ColumnNotFoundError{Name: name}
	}

	out := persist.SortState{Column: c.Index, Direction: core.SortAsc}
	dir = strings.ToLower(strings.TrimSpace(dir))
	if rest, ok := strings.CutPrefix(dir, "abs"); ok {
		out.IsAbs = true
		dir = strings.TrimPrefix(rest, "-")
	}
	switch dir {
	case "", "asc":
	case "desc":
		out.Direction = core.SortDesc
	default:
		return persist.SortState{}, fmt.Errorf("invalid sort direction %q (expected asc, desc, abs-asc or abs-desc)", dir)
	}
	return out, nil
}

// parseFilter splits "Name=text" into the column name and the quick filter
// text. The text keeps any further '=' characters, so "Exchange==NYSE"
// filters Exchange with "=NYSE".
func parseFilter(spec string) (name, text string, err error) {
	name, text, found := strings.Cut(spec, "=")
	name = strings.TrimSpace(name)
	if !found || name == "" {
		return "", "", fmt.Errorf("invalid filter %q (expected Column=text)", spec)
	}
	return name, text, nil
}

// apply restores a saved state, then applies sorts and filters on top.
func (o *ViewOptions) apply(ctx context.Context, sess *grid.Session) error {
	if o.State != "" {
		found, err := sess.Restore(ctx, o.State)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no saved state %q", o.State)
		}
	}

	if len(o.Sorts) > 0 {
		sorts := make([]persist.SortState, 0, len(o.Sorts))
		for _, spec := range o.Sorts {
			srt, err := parseSort(sess.Columns(), spec)
			if err != nil {
				return err
			}
			sorts = append(sorts, srt)
		}
		if err := sess.SetSorts(ctx, sorts); err != nil {
			return err
		}
	}

	for _, spec := range o.Filters {
		name, text, err := parseFilter(spec)
		if err != nil {
			return err
		}
		if err := sess.SetQuickFilter(ctx, name, text); err != nil {
			return err
		}
	}
	return nil
}

// window resolves the row and visual column ranges. Without --columns, as
// many columns as fit width are shown.
func (o *ViewOptions) window(sess *grid.Session, width int) (top, bottom int64, left, right core.VisualIndex, err error) {
	top, bottom = 0, 49
	if o.Rows != "" {
		if top, bottom, err = parseRange(o.Rows); err != nil {
			return 0, 0, 0, 0, err
		}
	}

	n := int64(len(sess.Columns()))
	lo, hi := int64(0), n-1
	if o.Columns != "" {
		if lo, hi, err = parseRange(o.Columns); err != nil {
			return 0, 0, 0, 0, err
		}
	} else if fit := columnsThatFit(width); fit > 0 {
		hi = min(hi, lo+int64(fit)-1)
	}
	return top, bottom, core.VisualIndex(lo), core.VisualIndex(max(hi, lo)), nil
}

// approximate rendered width of one column, borders included
const columnWidth = 14

func columnsThatFit(width int) int {
	if width <= 0 {
		return 0
	}
	return max(1, (width-8)/columnWidth)
}

// terminalWidth returns the width of stdout, or 0 when it is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}
