package format

import (
	"encoding/json"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		tag  string
		want Kind
	}{
		{"BIGINT", KindLong},
		{"integer", KindLong},
		{"DECIMAL(18,3)", KindDecimal},
		{"double precision", KindDecimal},
		{"DATE", KindDate},
		{"timestamp with time zone", KindTimestamp},
		{"TIMESTAMP", KindTimestamp},
		{"BOOLEAN", KindBool},
		{"VARCHAR", KindString},
		{"", KindString},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.tag))
		})
	}
}

func TestTextParse_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 30, 15, 123456789, time.UTC)
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value any
		tag   string
		text  string
	}{
		{name: "max long", value: int64(math.MaxInt64), tag: "BIGINT", text: "9223372036854775807"},
		{name: "min long", value: int64(math.MinInt64), tag: "BIGINT", text: "-9223372036854775808"},
		{name: "unsigned above int64", value: uint64(1 << 63), tag: "UBIGINT", text: "9223372036854775808"},
		{name: "max unsigned", value: uint64(math.MaxUint64), tag: "UBIGINT", text: "18446744073709551615"},
		{name: "hugeint", value: hugeint(t, "-170141183460469231731687303715884105728"), tag: "HUGEINT", text: "-170141183460469231731687303715884105728"},
		{name: "date", value: day, tag: "DATE", text: "2024-03-09"},
		{name: "timestamp", value: ts, tag: "TIMESTAMP", text: "2024-03-09T14:30:15.123456789Z"},
		{name: "double", value: 1.5, tag: "DOUBLE", text: "1.5"},
		{name: "bool", value: true, tag: "BOOLEAN", text: "true"},
		{name: "string", value: "AAPL", tag: "VARCHAR", text: "AAPL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := Text(tt.value, tt.tag)
			assert.Equal(t, tt.text, text)

			back, err := Parse(text, tt.tag)
			require.NoError(t, err)
			assertSameValue(t, tt.value, back)
		})
	}
}

func TestText_NonUTCTimestamp(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, loc)
	assert.Equal(t, "2024-01-01T14:00:00Z", Text(ts, "TIMESTAMPTZ"))
}

func TestParse_Errors(t *testing.T) {
	for _, tag := range []string{"BIGINT", "DOUBLE", "DATE", "TIMESTAMP", "BOOLEAN"} {
		_, err := Parse("not-a-value", tag)
		assert.Error(t, err, tag)
	}
	_, err := Parse("99999999999999999999x", "HUGEINT")
	assert.Error(t, err, "wide but malformed")
}

func TestEncodeDecode_SurvivesJSON(t *testing.T) {
	const big = int64(9007199254740993) // 2^53 + 1, not representable as float64

	payload := []any{Encode(big, "BIGINT"), Encode(time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC), "DATE"), Encode(2.25, "DOUBLE")}
	assert.Equal(t, "9007199254740993", payload[0])

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var raw []any
	require.NoError(t, json.Unmarshal(data, &raw))

	v, err := Decode(raw[0], "BIGINT")
	require.NoError(t, err)
	assert.Equal(t, big, v)

	v, err = Decode(raw[1], "DATE")
	require.NoError(t, err)
	assertSameValue(t, time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC), v)

	v, err = Decode(raw[2], "DOUBLE")
	require.NoError(t, err)
	assert.Equal(t, 2.25, v)
}

func TestDecode(t *testing.T) {
	v, err := Decode(float64(42), "BIGINT")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = Decode(1.5, "BIGINT")
	assert.Error(t, err)

	_, err = Decode(true, "DATE")
	assert.Error(t, err)

	v, err = Decode(nil, "BIGINT")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "NULL", Display(nil, "BIGINT"))
	assert.Equal(t, "12", Display(int32(12), "INTEGER"))
	assert.Equal(t, "abc", Display([]byte("abc"), "BLOB"))
	assert.Equal(t, "", Text(nil, "VARCHAR"))
}

func TestNumber(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		pattern string
		want    string
	}{
		{name: "grouped", value: int64(1234567), pattern: "#,##0", want: "1,234,567"},
		{name: "grouped decimals", value: 1234.5, pattern: "#,##0.00", want: "1,234.50"},
		{name: "fixed decimals", value: 3.14159, pattern: "0.000", want: "3.142"},
		{name: "percent", value: 0.256, pattern: "0.0%", want: "25.6%"},
		{name: "no pattern", value: int64(7), pattern: "", want: "7"},
		{name: "not a number", value: "x", pattern: "0.00", want: "x"},
		{name: "null", value: nil, pattern: "0.00", want: "NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Number(tt.value, "DOUBLE", tt.pattern))
		})
	}
}

func assertSameValue(t *testing.T, want, got any) {
	t.Helper()
	if wb, ok := want.(*big.Int); ok {
		gb, ok := got.(*big.Int)
		require.True(t, ok, "got %T", got)
		assert.Zero(t, wb.Cmp(gb), "want %s, got %s", wb, gb)
		return
	}
	if wt, ok := want.(time.Time); ok {
		gt, ok := got.(time.Time)
		require.True(t, ok, "got %T", got)
		assert.True(t, wt.Equal(gt), "want %s, got %s", wt, gt)
		return
	}
	assert.Equal(t, want, got)
}

func hugeint(t *testing.T, text string) *big.Int {
	t.Helper()
	b, ok := new(big.Int).SetString(text, 10)
	require.True(t, ok)
	return b
}
