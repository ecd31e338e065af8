package remote

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gridview/internal/testutil"
	"github.com/leapstack-labs/gridview/pkg/core"
	"github.com/leapstack-labs/gridview/pkg/viewport"
)

// The engine end to end over a real table: a window bigger than the table
// grows as rows are inserted.
func TestController_OverRemoteTable(t *testing.T) {
	db := newQuotesDB(t, 100)
	tbl := openQuotes(t, db)
	ctx := context.Background()

	id := column(t, tbl, "Id")
	require.NoError(t, tbl.ApplySort(ctx, []core.Sort{{Column: id, Direction: core.SortAsc}}))

	c := viewport.New(viewport.Config{
		Table:     tbl,
		Scheduler: viewport.Immediate(),
		Logger:    testutil.NewTestLogger(t),
	})
	t.Cleanup(func() { _ = c.Close() })

	cols := []core.ColumnRef{column(t, tbl, "Exchange"), column(t, tbl, "Stock")}
	require.NoError(t, c.SetViewport(0, 199, cols))
	require.Eventually(t, func() bool { return c.State() == viewport.Materialized }, 2*time.Second, time.Millisecond)

	w := c.Window()
	assert.Equal(t, "[0-99]", w.Visible.String())
	assert.Equal(t, int64(100), w.TableSize)

	require.NoError(t, db.Exec(ctx, `
		INSERT INTO quotes SELECT i, 'NYSE', concat('S', i), 1 FROM range(100, 110) t(i)`))
	tbl.Poll(ctx)

	w = c.Window()
	assert.Equal(t, "[0-109]", w.Visible.String())
	assert.Equal(t, int64(110), w.Visible.Size())
	assert.Equal(t, int64(110), w.TableSize)
	r, ok := w.Row(105)
	require.True(t, ok)
	assert.Equal(t, "S105", r.Get(cols[1]))

	// a filter re-applies the window
	require.NoError(t, c.ApplyFilter(ctx, []core.Filter{{Column: cols[0], Expression: "=LSE"}}))
	require.Eventually(t, func() bool {
		w := c.Window()
		return c.State() == viewport.Materialized && w != nil && w.Visible.String() == "[0-49]"
	}, 2*time.Second, time.Millisecond)
}

func TestWatch_PokesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grid.duckdb")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pokes atomic.Int32
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, testutil.NewTestLogger(t), func() { pokes.Add(1) }) }()

	// give the watcher time to register
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(path+".wal", []byte("wal"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))

	require.Eventually(t, func() bool { return pokes.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(2 * watchDebounce)
	assert.Equal(t, int32(1), pokes.Load(), "a burst of writes is one poke")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestIsDatabaseFile(t *testing.T) {
	assert.True(t, isDatabaseFile("/data/grid.duckdb", "/data/grid.duckdb"))
	assert.True(t, isDatabaseFile("/data/grid.duckdb", "/data/grid.duckdb.wal"))
	assert.False(t, isDatabaseFile("/data/grid.duckdb", "/data/grid.duckdb2"))
	assert.False(t, isDatabaseFile("/data/grid.duckdb", "/data/other.duckdb"))
}
