package common

import (
	"fmt"
	"strings"
	"time"
)

type Frequency int8

// Ordered from the finest to the coarsest resolution.
const (
	FrequencyTick Frequency = iota
	FrequencyMicrosecond
	FrequencyMillisecond
	FrequencySecond
	FrequencyMinute
	FrequencyHour
	FrequencyDay
)

func (f Frequency) String() string {
	switch f {
	case FrequencyTick:
		return "tick"
	case FrequencyMicrosecond:
		return "microsecond"
	case FrequencyMillisecond:
		return "millisecond"
	case FrequencySecond:
		return "second"
	case FrequencyMinute:
		return "minute"
	case FrequencyHour:
		return "hour"
	case FrequencyDay:
		return "day"
	default:
		return fmt.Sprintf("frequency(%d)", int8(f))
	}
}

// Duration is the bar interval, zero for ticks.
func (f Frequency) Duration() time.Duration {
	switch f {
	case FrequencyMicrosecond:
		return time.Microsecond
	case FrequencyMillisecond:
		return time.Millisecond
	case FrequencySecond:
		return time.Second
	case FrequencyMinute:
		return time.Minute
	case FrequencyHour:
		return time.Hour
	case FrequencyDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

func ParseFrequency(s string) (Frequency, error) {
	for f := FrequencyTick; f <= FrequencyDay; f++ {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown frequency %q", s)
}

func (f Frequency) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
