package feed

import "time"

// RowFilter decides at load time whether a row enters a symbol queue.
type RowFilter interface {
	Include(t time.Time) bool
}

type FilterFunc func(t time.Time) bool

func (f FilterFunc) Include(t time.Time) bool { return f(t) }

// DateRange keeps rows with From <= t <= To. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Include(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// AllOf keeps a row only if every filter keeps it.
func AllOf(filters ...RowFilter) RowFilter {
	return FilterFunc(func(t time.Time) bool {
		for _, f := range filters {
			if f != nil && !f.Include(t) {
				return false
			}
		}
		return true
	})
}
