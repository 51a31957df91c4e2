package exchange

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity    = errors.New("order quantity must be positive")
	ErrUnknownSymbol      = errors.New("symbol is not traded on this exchange")
	ErrOrderNotInitial    = errors.New("order was already submitted")
	ErrFractionalQuantity = errors.New("fractional quantities are not allowed")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotActive     = errors.New("order is not active")
	ErrInsufficientCash   = errors.New("not enough cash to fill the order")

	// ErrOrderCanceled marks the fill record of a Canceled event.
	ErrOrderCanceled = errors.New("order canceled")
	ErrOrderExpired  = fmt.Errorf("%w: session expired", ErrOrderCanceled)
)
