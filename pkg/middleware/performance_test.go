package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/peter-kozarec/barsim/pkg/strategy"
)

// stepClock advances by step on every reading.
func stepClock(step time.Duration) func() time.Time {
	now := base
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestPerformance_Measure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewPerformance(zap.New(core))
	p.clock = stepClock(time.Millisecond)

	var seen []int
	handler := Measure(p, "numbers", func(_ context.Context, n int) { seen = append(seen, n) })
	for n := range 3 {
		handler(context.Background(), n)
	}

	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, int64(3), p.Calls("numbers"))
	assert.Equal(t, 3*time.Millisecond, p.Total("numbers"))
	assert.Equal(t, time.Millisecond, p.Average("numbers"))
	assert.Zero(t, p.Calls("unknown"))
	assert.Zero(t, p.Average("unknown"))

	p.PrintStatistics()
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "numbers", logs.All()[0].ContextMap()["handler"])
}

func TestPerformance_WrapCallbacks(t *testing.T) {
	p := NewPerformance(zap.NewNop())
	s, _ := newRoundTrip(t, p.WrapCallbacks)

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, int64(4), p.Calls("on_bars"))
	assert.Equal(t, int64(1), p.Calls("on_enter"))
	assert.Equal(t, int64(1), p.Calls("on_exit"))
	assert.Zero(t, p.Calls("on_order_updated"))
	assert.Empty(t, s.ActivePositions())
}

func TestTelemetry_Attach(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tel := NewTelemetry(zap.New(core))
	s, _ := newRoundTrip(t, nil)
	tel.Attach(s)

	require.NoError(t, s.Run(context.Background()))

	tests := []struct {
		event string
		emits uint64
	}{
		{event: "dispatcher_start", emits: 1},
		{event: "dispatcher_stop", emits: 1},
		{event: "bars", emits: 4},
		{event: "bars_processed", emits: 4},
		{event: "orders", emits: 6},
		{event: "positions_closed", emits: 1},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			stats, ok := tel.Statistics(tt.event)
			require.True(t, ok)
			assert.Equal(t, tt.emits, stats.EmitCount)
		})
	}

	_, ok := tel.Statistics("unknown")
	assert.False(t, ok)

	tel.PrintStatistics()
	assert.Equal(t, 7, logs.FilterMessage("event statistics").Len())
}

var _ strategy.Callbacks = (*timedCallbacks)(nil)
