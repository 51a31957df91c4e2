package historical

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var (
	ErrMissingColumn = errors.New("csv column missing")
	ErrDuplicateTime = errors.New("duplicate bar time")
)

var csvTimeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// ReadCSV parses Yahoo Finance style bars: Date,Open,High,Low,Close,Adj Close,Volume.
// Column order is taken from the header; "Adj Close" is optional. Rows holding "null"
// values are skipped. Times are read in loc and returned sorted.
func ReadCSV(r io.Reader, frequency common.Frequency, loc *time.Location) ([]common.Row[common.Bar], error) {
	if loc == nil {
		loc = time.UTC
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read header: %w", err)
	}
	columns, err := csvColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []common.Row[common.Bar]
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if slices.ContainsFunc(record, func(v string) bool { return strings.EqualFold(v, "null") }) {
			continue
		}

		row, err := parseRecord(record, columns, frequency, loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}

	slices.SortFunc(rows, func(a, b common.Row[common.Bar]) int { return a.Time.Compare(b.Time) })
	for idx := 1; idx < len(rows); idx++ {
		if rows[idx].Time.Equal(rows[idx-1].Time) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTime, rows[idx].Time)
		}
	}

	return rows, nil
}

type csvColumnIndex struct {
	date, open, high, low, close, adjClose, volume int
}

func csvColumns(header []string) (csvColumnIndex, error) {
	index := func(names ...string) int {
		for idx, h := range header {
			for _, name := range names {
				if strings.EqualFold(strings.TrimSpace(h), name) {
					return idx
				}
			}
		}
		return -1
	}

	columns := csvColumnIndex{
		date:     index("Date", "Date Time", "Datetime"),
		open:     index("Open"),
		high:     index("High"),
		low:      index("Low"),
		close:    index("Close"),
		adjClose: index("Adj Close", "Adj_Close", "AdjClose"),
		volume:   index("Volume"),
	}

	for name, idx := range map[string]int{
		"Date": columns.date, "Open": columns.open, "High": columns.high,
		"Low": columns.low, "Close": columns.close, "Volume": columns.volume,
	} {
		if idx < 0 {
			return columns, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return columns, nil
}

func parseRecord(record []string, columns csvColumnIndex, frequency common.Frequency, loc *time.Location) (common.Row[common.Bar], error) {
	t, err := parseTime(record[columns.date], loc)
	if err != nil {
		return common.Row[common.Bar]{}, err
	}

	var values [6]fixed.Point
	for i, idx := range []int{columns.open, columns.high, columns.low, columns.close, columns.volume, columns.adjClose} {
		if idx < 0 {
			continue
		}
		if values[i], err = fixed.Parse(strings.TrimSpace(record[idx])); err != nil {
			return common.Row[common.Bar]{}, err
		}
	}

	bar, err := common.NewBar(values[0], values[1], values[2], values[3], values[4], values[5], frequency)
	if err != nil {
		return common.Row[common.Bar]{}, fmt.Errorf("bar at %s: %w", t, err)
	}
	return common.NewRow(t, bar), nil
}

func parseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range csvTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time %q", value)
}
