package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/barsim/pkg/common"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

var ts = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func pt(v int64) fixed.Point { return fixed.FromInt64(v, 0) }

func TestOrder_Constructors(t *testing.T) {
	market := NewMarketOrder(OrderActionBuy, "AAPL", pt(10), FillOnClose())
	assert.Equal(t, OrderTypeMarket, market.Type())
	assert.True(t, market.FillOnClose())
	assert.Equal(t, OrderStateInitial, market.State())
	assert.True(t, market.IsBuy())

	limit := NewLimitOrder(OrderActionSell, "AAPL", pt(100), pt(5), GoodTillCanceled())
	assert.Equal(t, OrderTypeLimit, limit.Type())
	assert.True(t, limit.LimitPrice().Eq(pt(100)))
	assert.True(t, limit.GoodTillCanceled())
	assert.True(t, limit.IsSell())

	stop := NewStopOrder(OrderActionSellShort, "AAPL", pt(90), pt(5), AllOrNone())
	assert.Equal(t, OrderTypeStop, stop.Type())
	assert.True(t, stop.StopPrice().Eq(pt(90)))
	assert.True(t, stop.AllOrNone())

	stopLimit := NewStopLimitOrder(OrderActionBuyToCover, "AAPL", pt(90), pt(95), pt(5))
	assert.Equal(t, OrderTypeStopLimit, stopLimit.Type())
	assert.True(t, stopLimit.StopPrice().Eq(pt(90)))
	assert.True(t, stopLimit.LimitPrice().Eq(pt(95)))
	assert.True(t, stopLimit.IsBuy())
}

func TestOrder_StateMachine(t *testing.T) {
	tests := []struct {
		name  string
		path  []OrderState
		legal bool
	}{
		{"submit accept fill", []OrderState{OrderStateSubmitted, OrderStateAccepted, OrderStateFilled}, true},
		{"partial fills", []OrderState{OrderStateSubmitted, OrderStateAccepted, OrderStatePartiallyFilled, OrderStatePartiallyFilled, OrderStateFilled}, true},
		{"cancel accepted", []OrderState{OrderStateSubmitted, OrderStateAccepted, OrderStateCanceled}, true},
		{"cancel partially filled", []OrderState{OrderStateSubmitted, OrderStateAccepted, OrderStatePartiallyFilled, OrderStateCanceled}, true},
		{"cancel submitted", []OrderState{OrderStateSubmitted, OrderStateCanceled}, true},
		{"fill before accept", []OrderState{OrderStateSubmitted, OrderStateFilled}, false},
		{"accept before submit", []OrderState{OrderStateAccepted}, false},
		{"fill after cancel", []OrderState{OrderStateSubmitted, OrderStateAccepted, OrderStateCanceled, OrderStateFilled}, false},
		{"cancel after fill", []OrderState{OrderStateSubmitted, OrderStateAccepted, OrderStateFilled, OrderStateCanceled}, false},
		{"resubmit", []OrderState{OrderStateSubmitted, OrderStateSubmitted}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewMarketOrder(OrderActionBuy, "AAPL", pt(1))
			walk := func() {
				for _, next := range tt.path {
					o.SwitchState(next)
				}
			}
			if tt.legal {
				assert.NotPanics(t, walk)
				assert.Equal(t, tt.path[len(tt.path)-1], o.State())
			} else {
				assert.Panics(t, walk)
			}
		})
	}
}

func TestOrderState_Flags(t *testing.T) {
	for _, s := range []OrderState{OrderStateFilled, OrderStateCanceled} {
		assert.True(t, s.IsTerminal(), s.String())
		assert.False(t, s.IsActive(), s.String())
		for _, next := range []OrderState{OrderStateInitial, OrderStateSubmitted, OrderStateAccepted, OrderStatePartiallyFilled, OrderStateFilled, OrderStateCanceled} {
			assert.False(t, CanTransition(s, next))
		}
	}
	assert.False(t, OrderStateInitial.IsActive())
	assert.True(t, OrderStateSubmitted.IsActive())
	assert.True(t, OrderStatePartiallyFilled.IsActive())
}

func TestOrder_AddExecution(t *testing.T) {
	o := NewLimitOrder(OrderActionBuy, "AAPL", pt(10), pt(10))
	o.Submit(7, ts)
	o.Accept(ts)

	assert.Equal(t, OrderId(7), o.Id())
	assert.Equal(t, ts, o.SubmittedAt())
	assert.Equal(t, ts, o.AcceptedAt())

	o.AddExecution(OrderInfo{Price: pt(10), Quantity: pt(4), Commission: pt(1), Time: ts})
	assert.Equal(t, OrderStatePartiallyFilled, o.State())
	assert.True(t, o.Remaining().Eq(pt(6)))

	o.AddExecution(OrderInfo{Price: pt(15), Quantity: pt(6), Commission: pt(1), Time: ts})
	assert.Equal(t, OrderStateFilled, o.State())
	assert.True(t, o.Filled().Eq(pt(10)))
	assert.True(t, o.AvgFillPrice().Eq(pt(13)))
	assert.True(t, o.Commissions().Eq(pt(2)))
	assert.Len(t, o.Executions(), 2)

	last, ok := o.LastExecution()
	require.True(t, ok)
	assert.True(t, last.Price.Eq(pt(15)))

	assert.Panics(t, func() {
		o.AddExecution(OrderInfo{Price: pt(15), Quantity: pt(1)})
	})
}

func TestOrder_AddExecutionRejectsBadQuantity(t *testing.T) {
	o := NewMarketOrder(OrderActionBuy, "AAPL", pt(2))
	o.Submit(1, ts)
	o.Accept(ts)

	assert.Panics(t, func() { o.AddExecution(OrderInfo{Price: pt(1), Quantity: pt(3)}) })
	assert.Panics(t, func() { o.AddExecution(OrderInfo{Price: pt(1), Quantity: fixed.Zero}) })
	assert.Equal(t, OrderStateAccepted, o.State())
	assert.True(t, o.Filled().IsZero())
}

func TestOrder_ExecutionOnSubmittedPanics(t *testing.T) {
	o := NewMarketOrder(OrderActionBuy, "AAPL", pt(2))
	o.Submit(1, ts)

	assert.Panics(t, func() { o.AddExecution(OrderInfo{Price: pt(1), Quantity: pt(1)}) })
	assert.True(t, o.Filled().IsZero())
}

func TestCommission(t *testing.T) {
	o := NewMarketOrder(OrderActionBuy, "AAPL", pt(10))

	assert.True(t, NoCommission{}.Calculate(o, pt(10), pt(10)).IsZero())

	pct := TradePercentage{Percentage: fixed.FromInt64(1, 2)}
	assert.True(t, pct.Calculate(o, pt(10), pt(10)).Eq(pt(1)))

	perTrade := FixedPerTrade{Amount: pt(5)}
	assert.True(t, perTrade.Calculate(o, pt(10), pt(4)).Eq(pt(5)))

	o.Submit(1, ts)
	o.Accept(ts)
	o.AddExecution(OrderInfo{Price: pt(10), Quantity: pt(4), Commission: pt(5)})
	assert.True(t, perTrade.Calculate(o, pt(10), pt(6)).IsZero())
}

func TestSlippage(t *testing.T) {
	bar := common.MustNewBar(pt(10), pt(12), pt(8), pt(11), pt(100), fixed.Zero, common.FrequencyDay)
	buy := NewMarketOrder(OrderActionBuy, "AAPL", pt(10))
	sell := NewMarketOrder(OrderActionSell, "AAPL", pt(10))

	assert.True(t, NoSlippage{}.AdjustPrice(buy, bar, pt(10), pt(10), fixed.Zero).Eq(pt(10)))

	s := NewVolumeShareSlippage()
	// share = (10 + 10) / 100 = 0.2, impact = 0.04 * 0.1 = 0.004
	assert.True(t, s.AdjustPrice(buy, bar, pt(10), pt(10), pt(10)).Eq(fixed.FromInt64(1004, 2)))
	assert.True(t, s.AdjustPrice(sell, bar, pt(10), pt(10), pt(10)).Eq(fixed.FromInt64(996, 2)))

	noVolume := common.MustNewBar(pt(10), pt(12), pt(8), pt(11), fixed.Zero, fixed.Zero, common.FrequencyDay)
	assert.True(t, s.AdjustPrice(buy, noVolume, pt(10), pt(10), fixed.Zero).Eq(pt(10)))
}

func TestOrderEvent(t *testing.T) {
	o := NewMarketOrder(OrderActionBuy, "AAPL", pt(1))
	o.Submit(3, ts)

	ev := NewOrderEvent(ts, o, OrderEventFilled, &OrderInfo{Price: pt(1), Quantity: pt(1)})
	assert.Equal(t, OrderId(3), ev.OrderId)
	assert.True(t, ev.IsFill())
	assert.Equal(t, "filled", ev.Type.String())
	assert.False(t, NewOrderEvent(ts, o, OrderEventAccepted, nil).IsFill())
}

func TestErrors(t *testing.T) {
	assert.ErrorIs(t, ErrOrderExpired, ErrOrderCanceled)
}
