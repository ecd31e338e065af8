package remote

import (
	"hash/fnv"
	"math/big"

	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/format"
)

// Cell colors used by Format.
const (
	ColorNegative = "#d73a49"
	ColorNull     = "#8b949e"
)

// row is one fetched row, keyed by model index.
type row struct {
	values map[core.ModelIndex]any
	hash   uint64
}

func newRow(cols []core.ColumnRef, values []any) *row {
	r := &row{values: make(map[core.ModelIndex]any, len(cols))}
	h := fnv.New64a()
	for i, c := range cols {
		v := normalize(values[i])
		r.values[c.Index] = v
		if v == nil {
			_, _ = h.Write([]byte{0})
		} else {
			_, _ = h.Write([]byte{1})
			_, _ = h.Write([]byte(format.Text(v, c.Type)))
		}
		_, _ = h.Write([]byte{0xff})
	}
	r.hash = h.Sum64()
	return r
}

// Get returns the value of col, or nil when the column was not fetched.
func (r *row) Get(col core.ColumnRef) any {
	return r.values[col.Index]
}

// Format returns rendering hints: numbers get a grouped number format and
// turn red when negative, NULLs are greyed out.
func (r *row) Format(col core.ColumnRef) core.CellFormat {
	v, ok := r.values[col.Index]
	if !ok {
		return core.CellFormat{}
	}
	if v == nil {
		return core.CellFormat{Color: ColorNull}
	}

	var f core.CellFormat
	switch format.KindOf(col.Type) {
	case format.KindLong:
		f.NumberFormat = "#,##0"
	case format.KindDecimal:
		f.NumberFormat = "#,##0.00"
	default:
		return f
	}
	if negative(v) {
		f.Color = ColorNegative
	}
	return f
}

// normalize converts driver values to the types format understands.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x
	default:
		return v
	}
}

func negative(v any) bool {
	switch x := v.(type) {
	case int64:
		return x < 0
	case int32:
		return x < 0
	case int:
		return x < 0
	case float64:
		return x < 0
	case float32:
		return x < 0
	case *big.Int:
		return x.Sign() < 0
	default:
		return false
	}
}
