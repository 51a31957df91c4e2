package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

func p(v int64) fixed.Point { return fixed.FromInt64(v, 0) }

func TestNewBar_Validation(t *testing.T) {
	tests := []struct {
		name                   string
		open, high, low, close int64
		wantErr                error
	}{
		{"valid", 2, 4, 1, 3, nil},
		{"flat", 5, 5, 5, 5, nil},
		{"open at high", 4, 4, 1, 3, nil},
		{"close at low", 2, 4, 1, 1, nil},
		{"high below low", 2, 1, 4, 3, ErrHighBelowLow},
		{"high below open", 5, 4, 1, 3, ErrHighBelowOpen},
		{"high below close", 2, 4, 1, 5, ErrHighBelowClose},
		{"low above open", 2, 4, 3, 3, ErrLowAboveOpen},
		{"low above close", 3, 4, 3, 2, ErrLowAboveClose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar, err := NewBar(p(tt.open), p(tt.high), p(tt.low), p(tt.close), p(100), fixed.Zero, FrequencyDay)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrInvalidBar)
				return
			}
			require.NoError(t, err)
			assert.True(t, bar.Open.Eq(p(tt.open)))
			assert.True(t, bar.AdjClose.Eq(p(tt.close)))
		})
	}
}

func TestNewBar_Volume(t *testing.T) {
	_, err := NewBar(p(2), p(4), p(1), p(3), p(-1), fixed.Zero, FrequencyDay)
	assert.ErrorIs(t, err, ErrNegativeVolume)

	_, err = NewBar(p(2), p(4), p(1), p(3), p(1), p(-1), FrequencyDay)
	assert.ErrorIs(t, err, ErrNegativeAdjClose)

	assert.Panics(t, func() { MustNewBar(p(2), p(1), p(4), p(3), p(1), fixed.Zero, FrequencyDay) })
}

func TestBar_AdjustedPrices(t *testing.T) {
	bar := MustNewBar(p(20), p(40), p(10), p(30), p(100), p(15), FrequencyDay)

	assert.True(t, bar.OpenPrice(false).Eq(p(20)))
	assert.True(t, bar.OpenPrice(true).Eq(p(10)))
	assert.True(t, bar.HighPrice(true).Eq(p(20)))
	assert.True(t, bar.LowPrice(true).Eq(p(5)))
	assert.True(t, bar.ClosePrice(true).Eq(p(15)))
	assert.True(t, bar.Typical(false).Eq(fixed.FromInt64(80, 0).DivInt(3)))
}

func TestFrequency(t *testing.T) {
	tests := []struct {
		freq     Frequency
		name     string
		duration time.Duration
	}{
		{FrequencyTick, "tick", 0},
		{FrequencySecond, "second", time.Second},
		{FrequencyMinute, "minute", time.Minute},
		{FrequencyHour, "hour", time.Hour},
		{FrequencyDay, "day", 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.freq.String())
			assert.Equal(t, tt.duration, tt.freq.Duration())

			parsed, err := ParseFrequency(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.freq, parsed)
		})
	}

	assert.True(t, FrequencyDay > FrequencyMinute)
	_, err := ParseFrequency("fortnight")
	assert.Error(t, err)
}
