package strategy

import (
	"context"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/exchange"
	"github.com/peter-kozarec/barsim/pkg/feed"
)

// Callbacks is the user side of a Strategy. All methods run on the dispatch goroutine.
type Callbacks interface {
	OnStart(ctx context.Context)
	// OnBars runs after the exchange matched its orders against the same bars.
	OnBars(ctx context.Context, bars feed.Values[common.Bar])
	OnIdle(ctx context.Context)
	OnStop(ctx context.Context)

	// OnEnter fires once, on the first fill of the entry order.
	OnEnter(ctx context.Context, position *Position)
	OnEnterCanceled(ctx context.Context, position *Position)
	OnExit(ctx context.Context, position *Position)
	OnExitCanceled(ctx context.Context, position *Position)

	// OnOrderUpdated receives events of orders that belong to no position.
	OnOrderUpdated(ctx context.Context, event exchange.OrderEvent)
}

// BaseCallbacks implements every callback as a no-op. Embed it to override only some.
type BaseCallbacks struct{}

func (BaseCallbacks) OnStart(context.Context)                             {}
func (BaseCallbacks) OnBars(context.Context, feed.Values[common.Bar])     {}
func (BaseCallbacks) OnIdle(context.Context)                              {}
func (BaseCallbacks) OnStop(context.Context)                              {}
func (BaseCallbacks) OnEnter(context.Context, *Position)                  {}
func (BaseCallbacks) OnEnterCanceled(context.Context, *Position)          {}
func (BaseCallbacks) OnExit(context.Context, *Position)                   {}
func (BaseCallbacks) OnExitCanceled(context.Context, *Position)           {}
func (BaseCallbacks) OnOrderUpdated(context.Context, exchange.OrderEvent) {}
