package sandbox

import (
	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/exchange"
)

type Option func(*Exchange)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Exchange) {
		e.logger = logger
	}
}

func WithCommission(commission exchange.Commission) Option {
	return func(e *Exchange) {
		e.commission = commission
	}
}

func WithFillStrategy(fillStrategy FillStrategy) Option {
	return func(e *Exchange) {
		e.fillStrategy = fillStrategy
	}
}

// WithAllowFractions permits non integral order quantities.
func WithAllowFractions(allow bool) Option {
	return func(e *Exchange) {
		e.allowFractions = allow
	}
}

// WithAllowNegativeCash lets buy fills drive cash below zero.
func WithAllowNegativeCash(allow bool) Option {
	return func(e *Exchange) {
		e.allowNegativeCash = allow
	}
}

// WithAdjustedValues makes fills and valuation use dividend/split adjusted prices.
func WithAdjustedValues(use bool) Option {
	return func(e *Exchange) {
		e.useAdjustedValues = use
	}
}
