package common

import "time"

// Row is a timestamped value. The zero Time is the "not started" sentinel and never a valid row time.
type Row[T any] struct {
	Time  time.Time `json:"ts"`
	Value T         `json:"value"`
}

func NewRow[T any](t time.Time, value T) Row[T] {
	return Row[T]{Time: t, Value: value}
}
