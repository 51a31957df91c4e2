package common

import (
	"time"

	"github.com/peter-kozarec/barsim/pkg/utility"
	"github.com/peter-kozarec/barsim/pkg/utility/fixed"
)

type TradeDirection string

const (
	TradeDirectionLong  TradeDirection = "long"
	TradeDirectionShort TradeDirection = "short"
)

// Trade is the record of one closed round trip.
type Trade struct {
	ExecutionId utility.ExecutionID `json:"eid"`
	PositionId  uint64              `json:"position_id"`
	Symbol      string              `json:"symbol"`
	Direction   TradeDirection      `json:"direction"`
	EntryTime   time.Time           `json:"entry_time"`
	ExitTime    time.Time           `json:"exit_time"`
	Quantity    fixed.Point         `json:"quantity"`
	EntryPrice  fixed.Point         `json:"entry_price"`
	ExitPrice   fixed.Point         `json:"exit_price"`
	Commission  fixed.Point         `json:"commission"`
	GrossProfit fixed.Point         `json:"gross_profit"`
	NetProfit   fixed.Point         `json:"net_profit"`
}
