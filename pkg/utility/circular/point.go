package circular

import (
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

// PointBuffer is a rolling window over decimal values keeping its sum up to date.
type PointBuffer struct {
	b *Buffer[fixed.Point]

	sum        fixed.Point
	sumSquares fixed.Point
}

func NewPointBuffer(capacity uint) *PointBuffer {
	return &PointBuffer{
		b: NewBuffer[fixed.Point](capacity),
	}
}

func (p *PointBuffer) PushUpdate(v fixed.Point) {
	if p.b.IsFull() {
		removed := p.b.Last()
		p.sum = p.sum.Sub(removed)
		p.sumSquares = p.sumSquares.Sub(removed.Mul(removed))
	}
	p.b.Push(v)
	p.sum = p.sum.Add(v)
	p.sumSquares = p.sumSquares.Add(v.Mul(v))
}

func (p *PointBuffer) Size() uint   { return p.b.Size() }
func (p *PointBuffer) IsFull() bool { return p.b.IsFull() }

func (p *PointBuffer) Sum() fixed.Point {
	return p.sum
}

func (p *PointBuffer) Mean() fixed.Point {
	if p.b.IsEmpty() {
		return fixed.Zero
	}
	return p.sum.DivInt64(int64(p.b.Size())) // #nosec G115
}

func (p *PointBuffer) Variance() fixed.Point {
	if p.b.Size() < 2 {
		return fixed.Zero
	}
	mean := p.Mean()
	variance := p.sumSquares.DivInt64(int64(p.b.Size())).Sub(mean.Mul(mean)) // #nosec G115
	if variance.IsNeg() {
		return fixed.Zero
	}
	return variance
}

func (p *PointBuffer) StdDev() fixed.Point {
	variance := p.Variance()
	if variance.IsZero() {
		return fixed.Zero
	}
	return variance.Sqrt()
}

func (p *PointBuffer) Reset() {
	p.b.Reset()
	p.sum = fixed.Zero
	p.sumSquares = fixed.Zero
}
