package sma

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var base = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func pt(v int64) fixed.Point { return fixed.FromInt64(v, 0) }

func TestIndicator_OnValue(t *testing.T) {
	sma := NewIndicator(3)

	var emitted []common.Row[fixed.Point]
	sma.NewValueEvent.Subscribe(func(_ context.Context, row common.Row[fixed.Point]) { emitted = append(emitted, row) })

	for i, v := range []int64{1, 2, 3, 4} {
		sma.OnValue(context.Background(), base.AddDate(0, 0, i), pt(v))
		if i < 2 {
			assert.False(t, sma.Ready())
		}
	}

	require.True(t, sma.Ready())
	require.Len(t, emitted, 2)
	assert.Equal(t, base.AddDate(0, 0, 2), emitted[0].Time)

	value, ok := sma.Value()
	require.True(t, ok)
	assert.True(t, value.Eq(pt(3)))

	prev, ok := sma.At(1)
	require.True(t, ok)
	assert.True(t, prev.Eq(pt(2)))

	_, ok = sma.At(2)
	assert.False(t, ok)

	sma.Reset()
	assert.False(t, sma.Ready())
}

func TestIndicator_AttachClose(t *testing.T) {
	f := feed.New[common.Bar]()
	require.NoError(t, f.RegisterTimeseries("AAPL"))

	var rows []common.Row[common.Bar]
	for i, c := range []int64{10, 12, 14} {
		rows = append(rows, common.NewRow(base.AddDate(0, 0, i), common.MustNewBar(pt(c), pt(c), pt(c), pt(c), pt(1), fixed.Zero, common.FrequencyDay)))
	}
	require.NoError(t, f.AddValues("AAPL", rows))

	ts, ok := f.Timeseries("AAPL")
	require.True(t, ok)

	sma := NewIndicator(2)
	sma.AttachClose(ts, false)

	for f.Dispatch(context.Background()) {
	}

	value, ok := sma.Value()
	require.True(t, ok)
	assert.True(t, value.Eq(pt(13)))
}
