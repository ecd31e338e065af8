package remote

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/leapstack-labs/gridview/pkg/adapter"
	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/format"
)

// customColumn is a computed column appended to the table's schema.
type customColumn struct {
	ref  core.ColumnRef
	expr string
}

// parseCustomColumn splits "Name=expression".
func parseCustomColumn(s string) (name, expr string, err error) {
	name, expr, ok := strings.Cut(s, "=")
	name, expr = strings.TrimSpace(name), strings.TrimSpace(expr)
	if !ok || name == "" || expr == "" {
		return "", "", fmt.Errorf("%w: %q is not Name=expression", ErrInvalidCustomColumn, s)
	}
	return name, expr, nil
}

// querySpec is everything needed to render a windowed query.
type querySpec struct {
	table       string
	custom      []customColumn
	filters     []core.Filter
	sorts       []core.Sort
	placeholder squirrel.PlaceholderFormat
}

// source is the row source: the table itself, or the table extended with
// custom columns as a derived table named base.
func (q querySpec) source(b squirrel.SelectBuilder) squirrel.SelectBuilder {
	if len(q.custom) == 0 {
		return b.From(adapter.QuoteTable(q.table))
	}
	inner := squirrel.Select("*").From(adapter.QuoteTable(q.table))
	for _, c := range q.custom {
		inner = inner.Column(fmt.Sprintf("(%s) AS %s", c.expr, adapter.QuoteIdent(c.ref.Name)))
	}
	return b.FromSelect(inner, "base")
}

func (q querySpec) where(b squirrel.SelectBuilder) (squirrel.SelectBuilder, error) {
	for _, f := range q.filters {
		pred, err := filterSQL(f)
		if err != nil {
			return b, err
		}
		if pred != nil {
			b = b.Where(pred)
		}
	}
	return b, nil
}

// window renders SELECT cols ... LIMIT end-start+1 OFFSET start.
func (q querySpec) window(startRow, endRow int64, cols []core.ColumnRef) (string, []any, error) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = adapter.QuoteIdent(c.Name)
	}
	if len(names) == 0 {
		// keep row positions even when no column is requested
		names = []string{"1"}
	}

	b, err := q.where(q.source(squirrel.Select(names...)))
	if err != nil {
		return "", nil, err
	}
	for _, s := range q.sorts {
		b = b.OrderBy(sortSQL(s))
	}
	return b.
		Limit(uint64(endRow - startRow + 1)).
		Offset(uint64(startRow)).
		PlaceholderFormat(q.placeholder).
		ToSql()
}

// count renders the filtered row count.
func (q querySpec) count() (string, []any, error) {
	b, err := q.where(q.source(squirrel.Select("COUNT(*)")))
	if err != nil {
		return "", nil, err
	}
	return b.PlaceholderFormat(q.placeholder).ToSql()
}

// probe renders a query returning no rows, used to validate custom columns
// and read their types.
func (q querySpec) probe() (string, []any, error) {
	return q.source(squirrel.Select("*")).Limit(0).PlaceholderFormat(q.placeholder).ToSql()
}

func sortSQL(s core.Sort) string {
	col := adapter.QuoteIdent(s.Column.Name)
	if s.IsAbs {
		col = "ABS(" + col + ")"
	}
	dir := core.SortAsc
	if s.Direction == core.SortDesc {
		dir = core.SortDesc
	}
	return col + " " + string(dir)
}

// filterSQL translates a filter to a predicate. A nil predicate means the
// filter does not restrict anything.
func filterSQL(f core.Filter) (squirrel.Sqlizer, error) {
	var preds squirrel.And

	if f.Expression != "" {
		p, err := quickFilterSQL(f.Column, f.Expression)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	if len(f.Conditions) > 0 {
		p, err := conditionsSQL(f.Column, f.Conditions, f.Operators)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	if len(f.Values) > 0 {
		preds = append(preds, valuesSQL(f.Column, f.Values, f.Invert))
	}

	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return preds, nil
	}
}

// conditionsSQL chains conditions left to right. operators[i] joins
// condition i and i+1; a missing operator means "and".
func conditionsSQL(col core.ColumnRef, conds []core.Condition, operators []string) (squirrel.Sqlizer, error) {
	var acc squirrel.Sqlizer
	for i, c := range conds {
		p, err := conditionSQL(col, c)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = p
			continue
		}
		op := "and"
		if i-1 < len(operators) {
			op = strings.ToLower(operators[i-1])
		}
		if op == "or" {
			acc = squirrel.Or{acc, p}
		} else {
			acc = squirrel.And{acc, p}
		}
	}
	return acc, nil
}

func conditionSQL(col core.ColumnRef, c core.Condition) (squirrel.Sqlizer, error) {
	ident := adapter.QuoteIdent(col.Name)

	switch c.Type {
	case core.CondIsNull:
		return squirrel.Eq{ident: nil}, nil
	case core.CondIsNotNull:
		return squirrel.NotEq{ident: nil}, nil
	case core.CondContains:
		return likeSQL(ident, "%"+escapeLike(c.Value)+"%"), nil
	case core.CondStartsWith:
		return likeSQL(ident, escapeLike(c.Value)+"%"), nil
	case core.CondEndsWith:
		return likeSQL(ident, "%"+escapeLike(c.Value)), nil
	}

	v, err := format.Parse(c.Value, col.Type)
	if err != nil {
		return nil, fmt.Errorf("invalid %s condition on %s: %w", c.Type, col.Name, err)
	}
	switch c.Type {
	case core.CondEquals:
		return squirrel.Eq{ident: v}, nil
	case core.CondNotEquals:
		return squirrel.NotEq{ident: v}, nil
	case core.CondGreater:
		return squirrel.Gt{ident: v}, nil
	case core.CondGreaterEq:
		return squirrel.GtOrEq{ident: v}, nil
	case core.CondLess:
		return squirrel.Lt{ident: v}, nil
	case core.CondLessEq:
		return squirrel.LtOrEq{ident: v}, nil
	default:
		return nil, fmt.Errorf("unknown condition type %q", c.Type)
	}
}

// valuesSQL restricts col to the selected values, or excludes them when
// invert is set. A nil value selects NULL.
func valuesSQL(col core.ColumnRef, values []any, invert bool) squirrel.Sqlizer {
	ident := adapter.QuoteIdent(col.Name)
	var nonNull []any
	hasNull := false
	for _, v := range values {
		if v == nil {
			hasNull = true
			continue
		}
		nonNull = append(nonNull, v)
	}

	if invert {
		var p squirrel.And
		if len(nonNull) > 0 {
			p = append(p, squirrel.NotEq{ident: nonNull})
		}
		if hasNull {
			p = append(p, squirrel.NotEq{ident: nil})
		}
		return p
	}

	var p squirrel.Or
	if len(nonNull) > 0 {
		p = append(p, squirrel.Eq{ident: nonNull})
	}
	if hasNull {
		p = append(p, squirrel.Eq{ident: nil})
	}
	return p
}

// quickFilterSQL interprets free text typed into a column's filter box.
//
//	null, !null        IS NULL / IS NOT NULL
//	>10, >=10, <, <=   comparisons
//	=IBM, !=IBM        exact match
//	!abc               does not contain
//	abc                contains (case-insensitive) for text, equals otherwise
func quickFilterSQL(col core.ColumnRef, text string) (squirrel.Sqlizer, error) {
	ident := adapter.QuoteIdent(col.Name)
	text = strings.TrimSpace(text)

	switch strings.ToLower(text) {
	case "null":
		return squirrel.Eq{ident: nil}, nil
	case "!null":
		return squirrel.NotEq{ident: nil}, nil
	}

	for _, op := range []string{">=", "<=", "!=", ">", "<", "="} {
		rest, ok := strings.CutPrefix(text, op)
		if !ok {
			continue
		}
		v, err := format.Parse(strings.TrimSpace(rest), col.Type)
		if err != nil {
			return nil, fmt.Errorf("invalid quick filter %q on %s: %w", text, col.Name, err)
		}
		switch op {
		case ">=":
			return squirrel.GtOrEq{ident: v}, nil
		case "<=":
			return squirrel.LtOrEq{ident: v}, nil
		case "!=":
			return squirrel.NotEq{ident: v}, nil
		case ">":
			return squirrel.Gt{ident: v}, nil
		case "<":
			return squirrel.Lt{ident: v}, nil
		default:
			return squirrel.Eq{ident: v}, nil
		}
	}

	if format.KindOf(col.Type) != format.KindString {
		v, err := format.Parse(text, col.Type)
		if err != nil {
			return nil, fmt.Errorf("invalid quick filter %q on %s: %w", text, col.Name, err)
		}
		return squirrel.Eq{ident: v}, nil
	}

	if rest, ok := strings.CutPrefix(text, "!"); ok {
		return squirrel.Expr("NOT ("+castText(ident)+" ILIKE ? ESCAPE '\\')", "%"+escapeLike(rest)+"%"), nil
	}
	return likeSQL(ident, "%"+escapeLike(text)+"%"), nil
}

func likeSQL(ident, pattern string) squirrel.Sqlizer {
	return squirrel.Expr(castText(ident)+" ILIKE ? ESCAPE '\\'", pattern)
}

func castText(ident string) string {
	return "CAST(" + ident + " AS VARCHAR)"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}
