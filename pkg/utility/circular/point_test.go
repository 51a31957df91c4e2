package circular

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

func TestPointBuffer_Rolling(t *testing.T) {
	p := NewPointBuffer(3)
	assert.True(t, p.Mean().IsZero())

	for _, v := range []int64{3, 1, 2, 4, 6} {
		p.PushUpdate(fixed.FromInt64(v, 0))
	}

	// window holds 2, 4, 6
	assert.True(t, p.IsFull())
	assert.True(t, p.Sum().Eq(fixed.FromInt(12, 0)))
	assert.True(t, p.Mean().Eq(fixed.FromInt(4, 0)))
	assert.True(t, p.Variance().Rescale(6).Eq(fixed.FromInt64(2666667, 6)))

	p.Reset()
	assert.Equal(t, uint(0), p.Size())
	assert.True(t, p.Sum().IsZero())
}
