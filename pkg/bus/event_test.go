package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEvent_EmitOrder(t *testing.T) {
	var e Event[int]
	var calls []string

	e.Subscribe(func(_ context.Context, v int) { calls = append(calls, "a") })
	e.Subscribe(func(_ context.Context, v int) { calls = append(calls, "b") })
	e.Subscribe(func(_ context.Context, v int) { calls = append(calls, "c") })

	e.Emit(context.Background(), 1)

	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Equal(t, 3, e.Len())
}

func TestEvent_Unsubscribe(t *testing.T) {
	var e Event[int]
	count := 0

	id := e.Subscribe(func(context.Context, int) { count++ })
	e.Emit(context.Background(), 1)
	e.Unsubscribe(id)
	e.Emit(context.Background(), 2)
	e.Unsubscribe(id)

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, e.Len())
}

func TestEvent_Reentrancy(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "self unsubscribe during emit",
			run: func(t *testing.T) {
				var e Event[int]
				var calls []string
				var selfId SubscriptionId

				selfId = e.Subscribe(func(ctx context.Context, v int) {
					calls = append(calls, "self")
					e.Unsubscribe(selfId)
				})
				e.Subscribe(func(context.Context, int) { calls = append(calls, "other") })

				e.Emit(context.Background(), 1)
				e.Emit(context.Background(), 2)

				assert.Equal(t, []string{"self", "other", "other"}, calls)
			},
		},
		{
			name: "subscribe during emit is deferred",
			run: func(t *testing.T) {
				var e Event[int]
				late := 0
				added := false

				e.Subscribe(func(context.Context, int) {
					if !added {
						added = true
						e.Subscribe(func(context.Context, int) { late++ })
					}
				})

				e.Emit(context.Background(), 1)
				assert.Equal(t, 0, late)
				assert.Equal(t, 2, e.Len())

				e.Emit(context.Background(), 2)
				assert.Equal(t, 1, late)
			},
		},
		{
			name: "unsubscribe of a later handler applies after emit",
			run: func(t *testing.T) {
				var e Event[int]
				laterCalls := 0
				var laterId SubscriptionId

				e.Subscribe(func(context.Context, int) { e.Unsubscribe(laterId) })
				laterId = e.Subscribe(func(context.Context, int) { laterCalls++ })

				e.Emit(context.Background(), 1)
				assert.Equal(t, 1, laterCalls)
				assert.Equal(t, 1, e.Len())

				e.Emit(context.Background(), 2)
				assert.Equal(t, 1, laterCalls)
			},
		},
		{
			name: "nested emit still sees handlers unsubscribed by the outer emit",
			run: func(t *testing.T) {
				var e Event[int]
				var calls []int
				var laterId SubscriptionId

				e.Subscribe(func(ctx context.Context, v int) {
					if v == 1 {
						e.Unsubscribe(laterId)
						e.Emit(ctx, 2)
					}
				})
				laterId = e.Subscribe(func(_ context.Context, v int) { calls = append(calls, v) })

				e.Emit(context.Background(), 1)
				e.Emit(context.Background(), 3)

				assert.Equal(t, []int{2, 1}, calls)
			},
		},
		{
			name: "nested emit does not apply outer changes",
			run: func(t *testing.T) {
				var e Event[int]
				var seen []int
				lateCalls := 0

				e.Subscribe(func(ctx context.Context, v int) {
					seen = append(seen, v)
					if v == 1 {
						e.Subscribe(func(context.Context, int) { lateCalls++ })
						e.Emit(ctx, 2)
						assert.True(t, e.IsEmitting())
					}
				})

				e.Emit(context.Background(), 1)

				assert.Equal(t, []int{1, 2}, seen)
				assert.Equal(t, 0, lateCalls)
				assert.False(t, e.IsEmitting())

				e.Emit(context.Background(), 3)
				assert.Equal(t, 1, lateCalls)
			},
		},
		{
			name: "subscribe then unsubscribe during emit",
			run: func(t *testing.T) {
				var e Event[int]
				calls := 0
				done := false

				e.Subscribe(func(context.Context, int) {
					if done {
						return
					}
					done = true
					id := e.Subscribe(func(context.Context, int) { calls++ })
					e.Unsubscribe(id)
				})

				e.Emit(context.Background(), 1)
				e.Emit(context.Background(), 2)

				assert.Equal(t, 0, calls)
				assert.Equal(t, 1, e.Len())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}

func TestEvent_PanicRestoresState(t *testing.T) {
	var e Event[int]
	calls := 0

	e.Subscribe(func(context.Context, int) {
		e.Subscribe(func(context.Context, int) { calls++ })
		panic("boom")
	})

	assert.Panics(t, func() { e.Emit(context.Background(), 1) })
	assert.False(t, e.IsEmitting())
	assert.Equal(t, 2, e.Len())
}

func TestEvent_Statistics(t *testing.T) {
	e := NewEvent[string]()
	e.Subscribe(NoopHandler[string]())
	e.Subscribe(MergeHandlers(NoopHandler[string](), NoopHandler[string]()))

	e.Emit(context.Background(), "x")
	e.Emit(context.Background(), "y")

	stats := e.Statistics()
	assert.Equal(t, uint64(2), stats.EmitCount)
	assert.Equal(t, uint64(4), stats.DispatchCount)
	assert.Equal(t, 2, stats.Subscribers)
	assert.Equal(t, 0, stats.Pending)

	stats.Print(zap.NewNop(), "test")
}

func TestMergeHandlers(t *testing.T) {
	var order []int
	h := MergeHandlers(
		func(_ context.Context, v int) { order = append(order, v) },
		func(_ context.Context, v int) { order = append(order, v*10) },
	)
	h(context.Background(), 2)
	assert.Equal(t, []int{2, 20}, order)
}

func TestEvent_NilHandlerPanics(t *testing.T) {
	var e Event[int]
	assert.Panics(t, func() { e.Subscribe(nil) })
}
