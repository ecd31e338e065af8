// Package format renders and parses cell values by column type tag.
//
// Text and Parse are inverses for every kind. Persisted filter values and
// on-screen cells go through the same routine, so 64-bit integers and
// timestamps survive a JSON round trip exactly.
package format

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind classifies an opaque column type tag.
type Kind int

// Value kinds.
const (
	KindString Kind = iota
	KindLong
	KindDecimal
	KindDate
	KindTimestamp
	KindBool
)

// Null is the display text for a missing value.
const Null = "NULL"

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// KindOf maps a database type tag ("BIGINT", "timestamp with time zone",
// "DECIMAL(18,3)") to a Kind. Unknown tags are strings.
func KindOf(typeTag string) Kind {
	t := strings.ToUpper(strings.TrimSpace(typeTag))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "BIGINT", "INT8", "INTEGER", "INT", "INT4", "SMALLINT", "INT2", "TINYINT", "INT1",
		"HUGEINT", "UBIGINT", "UINTEGER", "USMALLINT", "UTINYINT", "LONG", "BIGSERIAL", "SERIAL":
		return KindLong
	case "DOUBLE", "DOUBLE PRECISION", "FLOAT", "FLOAT4", "FLOAT8", "REAL", "DECIMAL", "NUMERIC":
		return KindDecimal
	case "DATE":
		return KindDate
	case "TIMESTAMP", "TIMESTAMPTZ", "DATETIME", "TIMESTAMP WITH TIME ZONE",
		"TIMESTAMP WITHOUT TIME ZONE", "TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS":
		return KindTimestamp
	case "BOOLEAN", "BOOL":
		return KindBool
	default:
		return KindString
	}
}

// IsNumeric reports whether the kind is a number.
func (k Kind) IsNumeric() bool { return k == KindLong || k == KindDecimal }

// NeedsText reports whether values of this kind are persisted as strings.
func (k Kind) NeedsText() bool {
	return k == KindLong || k == KindDate || k == KindTimestamp
}

// Text renders v exactly: longs in decimal, dates as YYYY-MM-DD, timestamps
// as RFC 3339 in UTC. nil yields "".
func Text(v any, typeTag string) string {
	if v == nil {
		return ""
	}
	kind := KindOf(typeTag)
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		if kind == KindDate {
			return x.Format(dateLayout)
		}
		return x.UTC().Format(timestampLayout)
	case *big.Int:
		return x.String()
	case float64:
		if kind == KindLong && x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// Display renders v for a cell. nil yields Null.
func Display(v any, typeTag string) string {
	if v == nil {
		return Null
	}
	return Text(v, typeTag)
}

// Parse converts text produced by Text back into a typed value.
func Parse(text, typeTag string) (any, error) {
	switch KindOf(typeTag) {
	case KindLong:
		return parseLong(text, typeTag)
	case KindDecimal:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %q as %s: %w", text, typeTag, err)
		}
		return f, nil
	case KindDate:
		d, err := time.Parse(dateLayout, text)
		if err != nil {
			// accept a full timestamp for a date column
			ts, tsErr := time.Parse(timestampLayout, text)
			if tsErr != nil {
				return nil, fmt.Errorf("failed to parse %q as %s: %w", text, typeTag, err)
			}
			return ts.UTC().Truncate(24 * time.Hour), nil
		}
		return d, nil
	case KindTimestamp:
		ts, err := time.Parse(timestampLayout, text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %q as %s: %w", text, typeTag, err)
		}
		return ts.UTC(), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %q as %s: %w", text, typeTag, err)
		}
		return b, nil
	default:
		return text, nil
	}
}

// Encode prepares v for a JSON payload: long, date and timestamp values are
// replaced by their Text, everything else is returned unchanged.
func Encode(v any, typeTag string) any {
	if v == nil || !KindOf(typeTag).NeedsText() {
		return v
	}
	return Text(v, typeTag)
}

// Decode reverses Encode. Strings of a text-encoded kind are parsed back;
// JSON numbers decoded as float64 are accepted for longs when exact.
func Decode(v any, typeTag string) (any, error) {
	kind := KindOf(typeTag)
	if v == nil || !kind.NeedsText() {
		return v, nil
	}
	switch x := v.(type) {
	case string:
		return Parse(x, typeTag)
	case float64:
		if kind == KindLong && x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x), nil
		}
	}
	return nil, fmt.Errorf("cannot decode %T as %s", v, typeTag)
}

var printer = message.NewPrinter(language.English)

// Number renders a numeric value with a number format hint. Supported hints
// are Excel-style patterns: "#,##0" groups thousands, ".00" fixes the
// number of decimals, a trailing "%" multiplies by 100. An empty hint falls
// back to Text.
func Number(v any, typeTag, pattern string) string {
	if v == nil {
		return Null
	}
	if pattern == "" {
		return Text(v, typeTag)
	}
	f, ok := toFloat(v)
	if !ok {
		return Text(v, typeTag)
	}

	percent := strings.HasSuffix(pattern, "%")
	if percent {
		f *= 100
		pattern = strings.TrimSuffix(pattern, "%")
	}
	decimals := 0
	if i := strings.IndexByte(pattern, '.'); i >= 0 {
		decimals = len(pattern[i+1:])
	}

	var out string
	if strings.Contains(pattern, ",") {
		out = printer.Sprintf(fmt.Sprintf("%%.%df", decimals), f)
	} else {
		out = strconv.FormatFloat(f, 'f', decimals, 64)
	}
	if percent {
		out += "%"
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, true
	default:
		return 0, false
	}
}

// parseLong returns an int64 when text fits, else a uint64, else a *big.Int,
// matching the types Text accepts for wide integer columns.
func parseLong(text, typeTag string) (any, error) {
	n, err := strconv.ParseInt(text, 10, 64)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, strconv.ErrRange) {
		return nil, fmt.Errorf("failed to parse %q as %s: %w", text, typeTag, err)
	}
	if u, uerr := strconv.ParseUint(text, 10, 64); uerr == nil {
		return u, nil
	}
	b, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, fmt.Errorf("failed to parse %q as %s: %w", text, typeTag, err)
	}
	return b, nil
}
