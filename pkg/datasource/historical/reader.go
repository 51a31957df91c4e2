package historical

import (
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/barsim/pkg/common"
)

// BarReader iterates the bars of one symbol with from <= t <= to. A zero bound is open.
type BarReader struct {
	source    *Source[BinaryBar]
	frequency common.Frequency

	from   int64
	to     int64
	cursor *Cursor[BinaryBar]
}

func NewBarReader(source *Source[BinaryBar], frequency common.Frequency, from, to time.Time) *BarReader {
	r := &BarReader{
		source:    source,
		frequency: frequency,
	}
	if !from.IsZero() {
		r.from = from.UnixNano()
	}
	if !to.IsZero() {
		r.to = to.UnixNano()
	}
	return r
}

// GetNext returns the next bar in range or ErrEof once the range is exhausted.
func (r *BarReader) GetNext() (common.Row[common.Bar], error) {
	if r.cursor == nil {
		if err := r.seek(); err != nil {
			return common.Row[common.Bar]{}, err
		}
	}

	var binBar BinaryBar
	if err := r.cursor.Next(&binBar); err != nil {
		if errors.Is(err, ErrEof) {
			return common.Row[common.Bar]{}, ErrEof
		}
		return common.Row[common.Bar]{}, fmt.Errorf("error reading entry at index %d: %w", r.cursor.Index(), err)
	}

	row, err := binBar.ToRow(r.frequency)
	if err != nil {
		return common.Row[common.Bar]{}, fmt.Errorf("entry at index %d: %w", r.cursor.Index()-1, err)
	}
	return row, nil
}

// ReadAll collects the remaining bars in range.
func (r *BarReader) ReadAll() ([]common.Row[common.Bar], error) {
	var rows []common.Row[common.Bar]
	for {
		row, err := r.GetNext()
		if errors.Is(err, ErrEof) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// seek positions the cursor on the first bar at or after from.
func (r *BarReader) seek() error {
	start, err := r.source.Search(func(b *BinaryBar) bool { return b.TimeStamp < r.from })
	if err != nil {
		return fmt.Errorf("unable to find first bar: %w", err)
	}

	var past func(*BinaryBar) bool
	if r.to != 0 {
		past = func(b *BinaryBar) bool { return b.TimeStamp > r.to }
	}
	r.cursor = r.source.Scan(start, past)
	return nil
}
