package bus

import (
	"context"
)

type EventHandler[T any] = func(context.Context, T)

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) {
		for _, handler := range handlers {
			handler(ctx, event)
		}
	}
}

func NoopHandler[T any]() EventHandler[T] {
	return func(context.Context, T) {}
}
