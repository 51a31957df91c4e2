package bus

import (
	"context"
	"slices"
)

type SubscriptionId uint64

type subscription[T any] struct {
	id      SubscriptionId
	handler EventHandler[T]
	removed bool
}

// Event is a synchronous broadcast of T values to its subscribers, in subscription order.
// The zero value is ready to use. It is not safe for concurrent use.
//
// Subscribe and Unsubscribe calls made by handlers while an Emit is in flight are queued
// and applied once the outermost Emit returns. Every emit, nested ones included, runs the
// handlers that were subscribed when the outermost Emit began: a handler unsubscribed
// mid-emit still runs in it, and a handler subscribed mid-emit first runs on the next emit.
type Event[T any] struct {
	lastId        SubscriptionId
	subscriptions []*subscription[T]
	pendingAdd    []*subscription[T]
	pendingRemove []SubscriptionId
	depth         int

	emitCount     uint64
	dispatchCount uint64
}

func NewEvent[T any]() *Event[T] {
	return &Event[T]{}
}

func (e *Event[T]) Subscribe(handler EventHandler[T]) SubscriptionId {
	if handler == nil {
		panic("bus: nil event handler")
	}

	e.lastId++
	s := &subscription[T]{id: e.lastId, handler: handler}

	if e.depth > 0 {
		e.pendingAdd = append(e.pendingAdd, s)
	} else {
		e.subscriptions = append(e.subscriptions, s)
	}
	return s.id
}

func (e *Event[T]) Unsubscribe(id SubscriptionId) {
	if e.depth == 0 {
		e.subscriptions = compact(e.subscriptions, id)
		return
	}

	markRemoved(e.pendingAdd, id)
	e.pendingRemove = append(e.pendingRemove, id)
}

func (e *Event[T]) Emit(ctx context.Context, value T) {
	e.emitCount++
	e.depth++
	defer func() {
		e.depth--
		if e.depth == 0 {
			e.applyPending()
		}
	}()

	for _, s := range e.subscriptions {
		e.dispatchCount++
		s.handler(ctx, value)
	}
}

// Len returns the number of handlers the next top-level Emit would invoke.
func (e *Event[T]) Len() int {
	n := 0
	for _, s := range e.subscriptions {
		if !slices.Contains(e.pendingRemove, s.id) {
			n++
		}
	}
	for _, s := range e.pendingAdd {
		if !s.removed {
			n++
		}
	}
	return n
}

func (e *Event[T]) IsEmitting() bool {
	return e.depth > 0
}

func (e *Event[T]) Statistics() Statistics {
	return Statistics{
		EmitCount:     e.emitCount,
		DispatchCount: e.dispatchCount,
		Subscribers:   e.Len(),
		Pending:       len(e.pendingAdd) + len(e.pendingRemove),
	}
}

func (e *Event[T]) applyPending() {
	if len(e.pendingAdd) == 0 && len(e.pendingRemove) == 0 {
		return
	}

	e.subscriptions = append(e.subscriptions, e.pendingAdd...)
	for _, id := range e.pendingRemove {
		e.subscriptions = compact(e.subscriptions, id)
	}

	e.pendingAdd = nil
	e.pendingRemove = nil
}

func markRemoved[T any](subscriptions []*subscription[T], id SubscriptionId) {
	for _, s := range subscriptions {
		if s.id == id {
			s.removed = true
		}
	}
}

func compact[T any](subscriptions []*subscription[T], id SubscriptionId) []*subscription[T] {
	out := subscriptions[:0]
	for _, s := range subscriptions {
		if s.id != id && !s.removed {
			out = append(out, s)
		}
	}
	for i := len(out); i < len(subscriptions); i++ {
		subscriptions[i] = nil
	}
	return out
}
