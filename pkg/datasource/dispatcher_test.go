package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

type fakeSubject struct {
	name     string
	times    []time.Time
	idx      int
	log      *[]string
	started  bool
	stopped  bool
	startErr error
	onDisp   func()
}

func (f *fakeSubject) Start() error {
	f.started = true
	return f.startErr
}

func (f *fakeSubject) Stop() error {
	f.stopped = true
	return nil
}

func (f *fakeSubject) Dispatch(context.Context) bool {
	if f.EOF() {
		return false
	}
	*f.log = append(*f.log, f.name+"@"+f.times[f.idx].Format("15:04"))
	f.idx++
	if f.onDisp != nil {
		f.onDisp()
	}
	return true
}

func (f *fakeSubject) EOF() bool { return f.idx >= len(f.times) }

func (f *fakeSubject) PeekTime() time.Time {
	if f.EOF() {
		return time.Time{}
	}
	return f.times[f.idx]
}

func at(minutes ...int) []time.Time {
	out := make([]time.Time, len(minutes))
	for i, m := range minutes {
		out[i] = t0.Add(time.Duration(m) * time.Minute)
	}
	return out
}

func TestDispatcher_TimestampOrder(t *testing.T) {
	var log []string
	a := &fakeSubject{name: "a", times: at(1, 3), log: &log}
	b := &fakeSubject{name: "b", times: at(2, 3), log: &log}

	d := NewDispatcher(WithLogger(zap.NewNop()))
	require.NoError(t, d.AddSubject(a))
	require.NoError(t, d.AddSubject(b))
	require.NoError(t, d.AddSubject(a))
	assert.Len(t, d.Subjects(), 2)

	var starts, stops int
	d.StartEvent.Subscribe(func(context.Context, time.Time) { starts++ })
	d.StopEvent.Subscribe(func(_ context.Context, last time.Time) {
		stops++
		assert.Equal(t, t0.Add(3*time.Minute), last)
	})

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []string{"a@00:01", "b@00:02", "a@00:03", "b@00:03"}, log)
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
	assert.True(t, a.started && a.stopped && b.started && b.stopped)
	assert.False(t, d.IsRunning())

	ticks, idle := d.Statistics()
	assert.Equal(t, uint64(3), ticks)
	assert.Equal(t, uint64(0), idle)
}

type realtimeSubject struct {
	remaining int
	idle      bool
	calls     int
}

func (r *realtimeSubject) Start() error { return nil }
func (r *realtimeSubject) Stop() error  { return nil }
func (r *realtimeSubject) Dispatch(context.Context) bool {
	r.calls++
	if r.idle {
		r.idle = false
		return false
	}
	r.remaining--
	return true
}
func (r *realtimeSubject) EOF() bool           { return r.remaining <= 0 }
func (r *realtimeSubject) PeekTime() time.Time { return time.Time{} }

func TestDispatcher_IdleAndRealtime(t *testing.T) {
	rt := &realtimeSubject{remaining: 2, idle: true}
	d := NewDispatcher()
	require.NoError(t, d.AddSubject(rt))

	idle := 0
	d.IdleEvent.Subscribe(func(context.Context, time.Time) { idle++ })

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 3, rt.calls)
	assert.Equal(t, 1, idle)
}

func TestDispatcher_StopFromHandler(t *testing.T) {
	var log []string
	d := NewDispatcher()
	a := &fakeSubject{name: "a", times: at(1, 2, 3), log: &log}
	a.onDisp = d.Stop
	require.NoError(t, d.AddSubject(a))

	stops := 0
	d.StopEvent.Subscribe(func(context.Context, time.Time) { stops++ })

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, []string{"a@00:01"}, log)
	assert.Equal(t, 1, stops)
}

func TestDispatcher_AddAfterStart(t *testing.T) {
	var log []string
	d := NewDispatcher()
	require.NoError(t, d.Run(context.Background()))
	assert.ErrorIs(t, d.AddSubject(&fakeSubject{log: &log}), ErrDispatcherStarted)
	assert.ErrorIs(t, d.Run(context.Background()), ErrDispatcherStarted)
}

func TestDispatcher_StartError(t *testing.T) {
	var log []string
	ok := &fakeSubject{name: "ok", times: at(1), log: &log}
	bad := &fakeSubject{name: "bad", times: at(1), log: &log, startErr: errors.New("boom")}

	d := NewDispatcher()
	require.NoError(t, d.AddSubject(ok))
	require.NoError(t, d.AddSubject(bad))

	err := d.Run(context.Background())
	require.Error(t, err)
	assert.True(t, ok.stopped)
	assert.Empty(t, log)
}

func TestDispatcher_ContextCanceled(t *testing.T) {
	var log []string
	d := NewDispatcher()
	require.NoError(t, d.AddSubject(&fakeSubject{name: "a", times: at(1), log: &log}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, d.Run(ctx), context.Canceled)
	assert.Empty(t, log)
}

type endlessSubject struct{}

func (endlessSubject) Start() error                  { return nil }
func (endlessSubject) Stop() error                   { return nil }
func (endlessSubject) Dispatch(context.Context) bool { return true }
func (endlessSubject) EOF() bool                     { return false }
func (endlessSubject) PeekTime() time.Time           { return time.Time{} }

func TestDispatcher_BackgroundStopWait(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.AddSubject(endlessSubject{}))

	assert.ErrorIs(t, d.Wait(), ErrNotStarted)

	require.NoError(t, d.Start(context.Background()))
	assert.ErrorIs(t, d.Start(context.Background()), ErrDispatcherStarted)

	d.Stop()
	assert.NoError(t, d.Wait())
	assert.False(t, d.IsRunning())
}
