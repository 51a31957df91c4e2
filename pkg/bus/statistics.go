package bus

import (
	"go.uber.org/zap"
)

type Statistics struct {
	EmitCount     uint64
	DispatchCount uint64
	Subscribers   int
	Pending       int
}

func (s Statistics) Print(logger *zap.Logger, name string) {
	logger.Info("event statistics",
		zap.String("event", name),
		zap.Uint64("emit_count", s.EmitCount),
		zap.Uint64("dispatch_count", s.DispatchCount),
		zap.Int("subscribers", s.Subscribers),
		zap.Int("pending", s.Pending))
}
