package middleware

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/bus"
	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/strategy"
)

const (
	ledgerComponentName = "middleware.ledger"
)

// TradeWriter persists one closed trade. psql.TradeStore and duckdb.Writer implement it.
type TradeWriter interface {
	WriteTrade(ctx context.Context, trade common.Trade) error
}

// Ledger writes closed trades in the background so the dispatch loop never waits on storage.
type Ledger struct {
	logger *zap.Logger
	writer TradeWriter

	wg     sync.WaitGroup
	mu     sync.Mutex
	failed int
}

func NewLedger(logger *zap.Logger, writer TradeWriter) *Ledger {
	return &Ledger{
		logger: logger,
		writer: writer,
	}
}

func (l *Ledger) WithPositionClosed(handler bus.EventHandler[*strategy.Position]) bus.EventHandler[*strategy.Position] {
	return func(ctx context.Context, position *strategy.Position) {
		if trade, ok := position.Trade(); ok {
			l.wg.Add(1)
			go func() {
				defer l.wg.Done()
				if err := l.writer.WriteTrade(context.WithoutCancel(ctx), trade); err != nil {
					l.mu.Lock()
					l.failed++
					l.mu.Unlock()
					l.logger.Warn("unable to write trade",
						zap.String("component", ledgerComponentName),
						zap.Uint64("position_id", trade.PositionId),
						zap.Error(err))
				}
			}()
		}
		handler(ctx, position)
	}
}

func (l *Ledger) Attach(s *strategy.Strategy) {
	s.PositionClosedEvent.Subscribe(l.WithPositionClosed(bus.NoopHandler[*strategy.Position]()))
}

// Wait blocks until every pending write finished and returns the number of failed writes.
func (l *Ledger) Wait() int {
	l.wg.Wait()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}
