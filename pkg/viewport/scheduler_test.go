package viewport

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestImmediate(t *testing.T) {
	ran := false
	Immediate().Schedule(func() { ran = true })
	assert.True(t, ran)
}

func TestDebounce_RunsLastOnly(t *testing.T) {
	d := Debounce(20 * time.Millisecond)

	var first, last atomic.Int32
	d.Schedule(func() { first.Add(1) })
	d.Schedule(func() { first.Add(1) })
	d.Schedule(func() { last.Add(1) })

	assert.Eventually(t, func() bool { return last.Load() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return first.Load() != 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestDebounce_Stop(t *testing.T) {
	d := Debounce(10 * time.Millisecond)

	var ran atomic.Bool
	d.Schedule(func() { ran.Store(true) })
	d.Stop()

	assert.Never(t, ran.Load, 50*time.Millisecond, 5*time.Millisecond)
}

func TestController_DebouncedFetch(t *testing.T) {
	table := newFakeTable("A")
	c := New(Config{Table: table, Scheduler: Debounce(50 * time.Millisecond)})
	defer c.Close()

	for i := int64(0); i < 20; i++ {
		assert.NoError(t, c.SetViewport(i, i+9, table.cols))
	}
	assert.Eventually(t, func() bool { return c.State() == Materialized }, time.Second, time.Millisecond)
	assert.Equal(t, 1, table.handleCount())
	assert.Equal(t, "[19-28]", c.Window().Visible.String())
}
