package historical

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

// BinaryBar is the on-disk bar record: 7 eight byte fields, no padding.
type BinaryBar struct {
	TimeStamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	AdjClose  float64
	Volume    float64
}

func NewBinaryBar(t time.Time, bar common.Bar) BinaryBar {
	return BinaryBar{
		TimeStamp: t.UnixNano(),
		Open:      float(bar.Open),
		High:      float(bar.High),
		Low:       float(bar.Low),
		Close:     float(bar.Close),
		AdjClose:  float(bar.AdjClose),
		Volume:    float(bar.Volume),
	}
}

func (b BinaryBar) ToRow(frequency common.Frequency) (common.Row[common.Bar], error) {
	bar, err := common.NewBar(
		fixed.FromFloat64(b.Open),
		fixed.FromFloat64(b.High),
		fixed.FromFloat64(b.Low),
		fixed.FromFloat64(b.Close),
		fixed.FromFloat64(b.Volume),
		fixed.FromFloat64(b.AdjClose),
		frequency)
	if err != nil {
		return common.Row[common.Bar]{}, err
	}
	return common.NewRow(time.Unix(0, b.TimeStamp).UTC(), bar), nil
}

// WriteBars encodes rows in the format Source[BinaryBar] maps.
func WriteBars(w io.Writer, rows []common.Row[common.Bar]) error {
	for idx, row := range rows {
		if err := binary.Write(w, binary.NativeEndian, NewBinaryBar(row.Time, row.Value)); err != nil {
			return fmt.Errorf("unable to write bar %d: %w", idx, err)
		}
	}
	return nil
}

func float(p fixed.Point) float64 {
	f, _ := p.Float64()
	return f
}
