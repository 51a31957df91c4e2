package synthetic

import (
	"time"

	"github.com/peter-kozarec/barsim/pkg/feed"
)

// IsBusinessDay reports whether t falls on a weekday other than New Year's Day or Christmas.
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	month, day := t.Month(), t.Day()
	if month == time.January && day == 1 || month == time.December && day == 25 {
		return false
	}
	return true
}

// BusinessDays drops rows outside business days when data is loaded into a feed.
func BusinessDays() feed.RowFilter {
	return feed.FilterFunc(IsBusinessDay)
}
