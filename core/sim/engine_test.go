package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineOrdersByTimeThenFIFO(t *testing.T) {
	e := New()
	var got []string
	rec := func(name string) Action {
		return func(float64) { got = append(got, name) }
	}
	e.Schedule(5, rec("c"))
	e.Schedule(1, rec("a"))
	e.Schedule(5, rec("d"))
	e.Schedule(1, rec("b"))
	e.Schedule(5, rec("e"))
	require.NoError(t, e.Run(context.Background(), 0))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
	assert.Equal(t, 5.0, e.Now())
	assert.Equal(t, 5, e.Steps())
}

func TestEngineNestedScheduling(t *testing.T) {
	e := New()
	var times []float64
	e.Schedule(2, func(now float64) {
		times = append(times, now)
		e.After(3, func(now float64) { times = append(times, now) })
		e.Schedule(0, func(now float64) { times = append(times, now) })
	})
	require.NoError(t, e.Run(context.Background(), 0))
	assert.Equal(t, []float64{2, 2, 5}, times)
}

func TestEngineRunUntil(t *testing.T) {
	e := New()
	ran := 0
	e.Schedule(1, func(float64) { ran++ })
	e.Schedule(10, func(float64) { ran++ })
	require.NoError(t, e.Run(context.Background(), 5))
	assert.Equal(t, 1, ran)
	assert.Equal(t, 5.0, e.Now())
	assert.Equal(t, 1, e.Pending())
}

func TestEngineCancelled(t *testing.T) {
	e := New()
	e.Schedule(1, func(float64) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx, 0), context.Canceled)
}
