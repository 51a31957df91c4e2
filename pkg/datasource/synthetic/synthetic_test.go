package synthetic

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/feed"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestBarGenerator(t *testing.T) {
	g := NewStockBarGenerator(rand.New(rand.NewSource(42)), start, 50, 0.05, 0.2)

	rows, err := g.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 50)

	for idx, row := range rows {
		bar := row.Value
		assert.Equal(t, start.AddDate(0, 0, idx), row.Time)
		assert.Equal(t, common.FrequencyDay, bar.Frequency)
		assert.True(t, bar.High.Gte(fixed.Max(bar.Open, bar.Close)))
		assert.True(t, bar.Low.Lte(fixed.Min(bar.Open, bar.Close)))
		assert.True(t, bar.Low.IsPos())
		assert.True(t, bar.Volume.IsPos())
		assert.True(t, bar.Volume.IsInt())
		if idx > 0 {
			assert.True(t, bar.Open.Eq(rows[idx-1].Value.Close), "bar %d opens at the previous close", idx)
		}
	}
	assert.True(t, rows[0].Value.Open.Eq(fixed.FromInt(100, 0)))

	_, err = g.GetNext()
	assert.ErrorIs(t, err, ErrEof)
}

func TestBarGenerator_Deterministic(t *testing.T) {
	a, err := NewStockBarGenerator(rand.New(rand.NewSource(7)), start, 20, 0, 0.3).ReadAll()
	require.NoError(t, err)
	b, err := NewStockBarGenerator(rand.New(rand.NewSource(7)), start, 20, 0, 0.3).ReadAll()
	require.NoError(t, err)

	require.Len(t, b, len(a))
	for idx := range a {
		assert.True(t, a[idx].Value.Close.Eq(b[idx].Value.Close))
		assert.True(t, a[idx].Value.Volume.Eq(b[idx].Value.Volume))
	}
}

func TestBarGenerator_ZeroVolatilityDrifts(t *testing.T) {
	g := NewBarGenerator(rand.New(rand.NewSource(1)), start,
		fixed.FromInt(100, 0), fixed.FromFloat64(0.252), fixed.Zero, fixed.One.DivInt(252),
		common.FrequencyHour, 3)
	g.SetPriceDigits(4)

	rows, err := g.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, start.Add(2*time.Hour), rows[2].Time)
	for _, row := range rows {
		assert.True(t, row.Value.Close.Gt(row.Value.Open))
		assert.True(t, row.Value.High.Eq(row.Value.Close))
		assert.True(t, row.Value.Low.Eq(row.Value.Open))
	}
}

func TestIsBusinessDay(t *testing.T) {
	tests := []struct {
		date time.Time
		want bool
	}{
		{date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), want: false},
		{date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), want: true},
		{date: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), want: false},
		{date: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), want: false},
		{date: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), want: true},
		{date: time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.date.Format(time.DateOnly), func(t *testing.T) {
			assert.Equal(t, tt.want, IsBusinessDay(tt.date))
		})
	}
}

func TestBusinessDays_FeedFilter(t *testing.T) {
	rows, err := NewStockBarGenerator(rand.New(rand.NewSource(3)), start, 14, 0, 0.2).ReadAll()
	require.NoError(t, err)

	f := feed.New[common.Bar](feed.WithRowFilter(BusinessDays()))
	require.NoError(t, f.RegisterTimeseries("SYN"))
	require.NoError(t, f.AddValues("SYN", rows))

	// Two weekends plus New Year's Day.
	assert.Equal(t, 5, f.Dropped())
	assert.Equal(t, 9, f.Remaining("SYN"))
}
