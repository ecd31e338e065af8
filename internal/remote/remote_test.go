package remote

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gridview/internal/testutil"
	"github.com/leapstack-labs/gridview/pkg/adapters/duckdb"
	"github.com/leapstack-labs/gridview/pkg/core"
)

// newQuotesDB returns an in-memory database with a quotes table of n rows:
// Id 0..n-1, Exchange alternating NYSE/LSE, Stock "S<id>", Price id*1.5-10.
func newQuotesDB(t *testing.T, n int) *duckdb.Adapter {
	t.Helper()
	ctx := context.Background()
	db := duckdb.New(testutil.NewTestLogger(t))
	require.NoError(t, db.Connect(ctx, core.AdapterConfig{Path: ":memory:"}))
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Exec(ctx, `CREATE TABLE quotes (Id BIGINT, Exchange VARCHAR, Stock VARCHAR, Price DOUBLE)`))
	require.NoError(t, db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO quotes
		SELECT i, CASE WHEN i %% 2 = 0 THEN 'NYSE' ELSE 'LSE' END, concat('S', i), i * 1.5 - 10
		FROM range(%d) t(i)`, n)))
	return db
}

func openQuotes(t *testing.T, db *duckdb.Adapter) *Table {
	t.Helper()
	tbl, err := Open(context.Background(), db, "quotes", Options{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tbl.Close() })
	return tbl
}

func column(t *testing.T, tbl *Table, name string) core.ColumnRef {
	t.Helper()
	c, ok := core.FindColumn(tbl.Columns(), name)
	require.True(t, ok, "column %s", name)
	return c
}

func snapshotValues(t *testing.T, tbl *Table, start, end int64, col core.ColumnRef) []any {
	t.Helper()
	h, err := tbl.SetViewport(context.Background(), start, end, []core.ColumnRef{col})
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	snap, err := h.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start, snap.Offset)

	var out []any
	for _, r := range snap.Rows {
		out = append(out, r.Get(col))
	}
	return out
}

func TestOpen(t *testing.T) {
	db := newQuotesDB(t, 110)
	tbl := openQuotes(t, db)

	assert.Equal(t, "quotes", tbl.Name())
	assert.Equal(t, int64(110), tbl.Size())
	assert.Equal(t, []core.ColumnRef{
		{Index: 0, Name: "Id", Type: "BIGINT"},
		{Index: 1, Name: "Exchange", Type: "VARCHAR"},
		{Index: 2, Name: "Stock", Type: "VARCHAR"},
		{Index: 3, Name: "Price", Type: "DOUBLE"},
	}, tbl.Columns())

	_, err := Open(context.Background(), db, "missing", Options{})
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestTable_Snapshot(t *testing.T) {
	tbl := openQuotes(t, newQuotesDB(t, 110))
	ctx := context.Background()
	id := column(t, tbl, "Id")
	require.NoError(t, tbl.ApplySort(ctx, []core.Sort{{Column: id, Direction: core.SortAsc}}))

	tests := []struct {
		name       string
		start, end int64
		want       []any
	}{
		{"inside", 10, 13, []any{int64(10), int64(11), int64(12), int64(13)}},
		{"past the end", 108, 120, []any{int64(108), int64(109)}},
		{"beyond the table", 200, 210, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, snapshotValues(t, tbl, tt.start, tt.end, id))
		})
	}
}

func TestTable_SetViewport_Rejects(t *testing.T) {
	tbl := openQuotes(t, newQuotesDB(t, 5))
	ctx := context.Background()

	_, err := tbl.SetViewport(ctx, 5, 4, nil)
	require.Error(t, err)

	_, err = tbl.SetViewport(ctx, 0, 4, []core.ColumnRef{{Index: 0, Name: "Stock"}})
	require.Error(t, err, "name does not match index")
}

func TestTable_ApplySortAndFilter(t *testing.T) {
	tbl := openQuotes(t, newQuotesDB(t, 110))
	ctx := context.Background()
	id := column(t, tbl, "Id")
	price := column(t, tbl, "Price")
	exchange := column(t, tbl, "Exchange")

	require.NoError(t, tbl.ApplySort(ctx, []core.Sort{{Column: price, Direction: core.SortAsc, IsAbs: true}}))
	// |i*1.5-10| is smallest at i=7 (0.5), then i=6 (1.0)
	assert.Equal(t, []any{int64(7), int64(6)}, snapshotValues(t, tbl, 0, 1, id))

	require.NoError(t, tbl.ApplyFilter(ctx, []core.Filter{
		{Column: exchange, Expression: "=NYSE"},
		{Column: price, Conditions: []core.Condition{{Type: core.CondGreaterEq, Value: "100"}}},
	}))
	// even ids with i*1.5-10 >= 100: 74, 76, ..., 108
	assert.Equal(t, int64(18), tbl.Size())
	assert.Len(t, tbl.Filters(), 2)

	err := tbl.ApplyFilter(ctx, []core.Filter{{Column: price, Expression: ">cheap"}})
	require.Error(t, err)
	assert.Equal(t, int64(18), tbl.Size(), "a rejected filter changes nothing")
	assert.Len(t, tbl.Filters(), 2)

	require.NoError(t, tbl.ApplyFilter(ctx, nil))
	assert.Equal(t, int64(110), tbl.Size())
}

func TestTable_CustomColumns(t *testing.T) {
	tbl := openQuotes(t, newQuotesDB(t, 10))
	ctx := context.Background()
	id := column(t, tbl, "Id")

	require.NoError(t, tbl.ApplyCustomColumns(ctx, []string{`Double="Price" * 2`, `Label=concat("Exchange", ':', "Stock")`}))

	cols := tbl.Columns()
	require.Len(t, cols, 6)
	assert.Equal(t, core.ColumnRef{Index: 4, Name: "Double", Type: "DOUBLE"}, cols[4])
	assert.Equal(t, core.ColumnRef{Index: 5, Name: "Label", Type: "VARCHAR"}, cols[5])

	require.NoError(t, tbl.ApplySort(ctx, []core.Sort{{Column: cols[4], Direction: core.SortDesc}}))
	assert.Equal(t, []any{int64(9)}, snapshotValues(t, tbl, 0, 0, id))
	assert.Equal(t, []any{"LSE:S9"}, snapshotValues(t, tbl, 0, 0, cols[5]))

	t.Run("invalid expression", func(t *testing.T) {
		err := tbl.ApplyCustomColumns(ctx, []string{`Bad=no_such_function("Price")`})
		require.ErrorIs(t, err, ErrInvalidCustomColumn)
		assert.Len(t, tbl.Columns(), 6, "custom columns unchanged")
	})

	t.Run("name clash", func(t *testing.T) {
		err := tbl.ApplyCustomColumns(ctx, []string{`Price=1`})
		require.ErrorIs(t, err, ErrInvalidCustomColumn)
	})

	t.Run("removal drops dependent sorts", func(t *testing.T) {
		require.NoError(t, tbl.ApplyCustomColumns(ctx, nil))
		assert.Len(t, tbl.Columns(), 4)
		assert.Empty(t, tbl.Sorts())
	})
}

type eventLog struct {
	mu     sync.Mutex
	events []core.DeltaEvent
}

func (l *eventLog) add(ev core.DeltaEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) take() []core.DeltaEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.events
	l.events = nil
	return out
}

func TestTable_PollPushesDeltas(t *testing.T) {
	db := newQuotesDB(t, 10)
	tbl := openQuotes(t, db)
	ctx := context.Background()
	id := column(t, tbl, "Id")
	price := column(t, tbl, "Price")
	require.NoError(t, tbl.ApplySort(ctx, []core.Sort{{Column: id, Direction: core.SortAsc}}))

	h, err := tbl.SetViewport(ctx, 0, 19, []core.ColumnRef{id, price})
	require.NoError(t, err)
	log := &eventLog{}
	unsubscribe := h.OnUpdate(log.add)

	tbl.Poll(ctx)
	assert.Empty(t, log.take(), "no delta before the first snapshot")

	_, err = h.Snapshot(ctx)
	require.NoError(t, err)

	tbl.Poll(ctx)
	assert.Empty(t, log.take(), "no delta when nothing changed")

	require.NoError(t, db.Exec(ctx, `UPDATE quotes SET Price = -1 WHERE Id = 3`))
	tbl.Poll(ctx)
	events := log.take()
	require.Len(t, events, 1)
	assert.Equal(t, "[3]", events[0].Updated.String())
	assert.True(t, events[0].Added.IsEmpty())
	assert.Equal(t, -1.0, events[0].Rows[3].Get(price))

	require.NoError(t, db.Exec(ctx, `INSERT INTO quotes VALUES (10, 'NYSE', 'S10', 5), (11, 'LSE', 'S11', 6)`))
	tbl.Poll(ctx)
	events = log.take()
	require.Len(t, events, 1)
	assert.Equal(t, "[10-11]", events[0].Added.String())
	assert.Equal(t, int64(12), tbl.Size(), "poll refreshes the size")

	require.NoError(t, db.Exec(ctx, `DELETE FROM quotes WHERE Id >= 10`))
	tbl.Poll(ctx)
	events = log.take()
	require.Len(t, events, 1)
	assert.Equal(t, "[10-11]", events[0].Removed.String())

	unsubscribe()
	require.NoError(t, db.Exec(ctx, `UPDATE quotes SET Price = 0`))
	tbl.Poll(ctx)
	assert.Empty(t, log.take(), "unsubscribed")

	require.NoError(t, h.Close())
	require.NoError(t, h.Close(), "closing twice is fine")
}

func TestTable_Close(t *testing.T) {
	tbl := openQuotes(t, newQuotesDB(t, 3))
	ctx := context.Background()

	h, err := tbl.SetViewport(ctx, 0, 2, tbl.Columns())
	require.NoError(t, err)

	require.NoError(t, tbl.Close())
	require.NoError(t, tbl.Close())

	_, err = tbl.SetViewport(ctx, 0, 2, nil)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, tbl.ApplySort(ctx, nil), ErrClosed)

	// the handle was released with the table
	assert.NotPanics(t, func() { h.OnUpdate(func(core.DeltaEvent) {})() })
	tbl.Poke()
}
