package middleware

import (
	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/strategy"
)

const (
	telemetryComponentName = "middleware.telemetry"
)

type statisticsSource interface {
	Statistics() bus.Statistics
}

type trackedEvent struct {
	name   string
	source statisticsSource
}

// Telemetry reports emit and dispatch counters of registered events.
type Telemetry struct {
	logger *zap.Logger
	events []trackedEvent
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	return &Telemetry{
		logger: logger,
	}
}

func (t *Telemetry) Track(name string, event statisticsSource) {
	t.events = append(t.events, trackedEvent{name: name, source: event})
}

// Attach tracks every event a strategy run emits.
func (t *Telemetry) Attach(s *strategy.Strategy) {
	t.Track("dispatcher_start", &s.Dispatcher().StartEvent)
	t.Track("dispatcher_idle", &s.Dispatcher().IdleEvent)
	t.Track("dispatcher_stop", &s.Dispatcher().StopEvent)
	t.Track("bars", &s.Feed().NewValuesEvent)
	t.Track("orders", &s.Exchange().OrderEvent)
	t.Track("bars_processed", &s.BarsProcessedEvent)
	t.Track("positions_closed", &s.PositionClosedEvent)
}

func (t *Telemetry) Statistics(name string) (bus.Statistics, bool) {
	for _, event := range t.events {
		if event.name == name {
			return event.source.Statistics(), true
		}
	}
	return bus.Statistics{}, false
}

func (t *Telemetry) PrintStatistics() {
	for _, event := range t.events {
		stats := event.source.Statistics()
		t.logger.Info("event statistics",
			zap.String("component", telemetryComponentName),
			zap.String("event", event.name),
			zap.Uint64("emit_count", stats.EmitCount),
			zap.Uint64("dispatch_count", stats.DispatchCount),
			zap.Int("subscribers", stats.Subscribers))
	}
}
