package atr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

func pt(v int64) fixed.Point { return fixed.FromInt64(v, 0) }

func bar(h, l, c int64) common.Bar {
	return common.MustNewBar(pt(c), pt(h), pt(l), pt(c), pt(100), fixed.Zero, common.FrequencyDay)
}

func TestIndicator(t *testing.T) {
	atr := NewIndicator(3, false)

	atr.OnBar(bar(10, 8, 9))
	assert.False(t, atr.Ready())
	assert.True(t, atr.AverageTrueRange().IsZero())

	atr.OnBar(bar(11, 9, 10))
	assert.True(t, atr.Ready())
	assert.True(t, atr.TrueRange().Eq(pt(2)))
	assert.True(t, atr.AverageTrueRange().Eq(pt(2)))

	atr.OnBar(bar(13, 10, 12))
	assert.True(t, atr.TrueRange().Eq(pt(3)))
	assert.True(t, atr.AverageTrueRange().Eq(pt(7).DivInt(3)))

	atr.Reset()
	assert.False(t, atr.Ready())
	assert.True(t, atr.TrueRange().IsZero())
}

func TestIndicator_GapUsesPreviousClose(t *testing.T) {
	atr := NewIndicator(14, false)
	atr.OnBar(bar(10, 8, 9))
	atr.OnBar(bar(20, 18, 19))

	assert.True(t, atr.TrueRange().Eq(pt(11)))
}

func TestIndicator_InvalidPeriod(t *testing.T) {
	assert.Panics(t, func() { NewIndicator(0, false) })
}
