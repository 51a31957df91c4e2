package datasource

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/barsim/pkg/bus"
)

const (
	dispatcherComponentName = "datasource.dispatcher"
)

var (
	ErrDispatcherStarted = errors.New("dispatcher already started")
	ErrNotStarted        = errors.New("dispatcher not started")
)

// Subject is a data source the Dispatcher advances one step at a time.
//
// PeekTime returns the timestamp of the next step; the zero time marks a realtime
// subject that is dispatched on every tick.
type Subject interface {
	Start() error
	Stop() error
	Dispatch(ctx context.Context) bool
	EOF() bool
	PeekTime() time.Time
}

type Option func(*Dispatcher)

func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher drives the simulation clock. Run executes the loop on the calling goroutine;
// everything it dispatches runs there too.
type Dispatcher struct {
	logger   *zap.Logger
	subjects []Subject

	started atomic.Bool
	running atomic.Bool

	doneMu sync.Mutex
	done   chan struct{}
	err    error

	currentTime time.Time
	ticks       uint64
	idleTicks   uint64

	StartEvent bus.Event[time.Time]
	IdleEvent  bus.Event[time.Time]
	StopEvent  bus.Event[time.Time]
}

func NewDispatcher(options ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: zap.NewNop(),
	}

	for _, option := range options {
		option(d)
	}

	return d
}

// AddSubject registers a subject. Adding the same subject twice is a no-op.
func (d *Dispatcher) AddSubject(subject Subject) error {
	if d.started.Load() {
		return ErrDispatcherStarted
	}
	if slices.Contains(d.subjects, subject) {
		return nil
	}
	d.subjects = append(d.subjects, subject)
	return nil
}

func (d *Dispatcher) Subjects() []Subject {
	return slices.Clone(d.subjects)
}

func (d *Dispatcher) CurrentTime() time.Time {
	return d.currentTime
}

// Stop requests termination. It is safe to call from any goroutine; the loop exits
// after finishing the tick in progress.
func (d *Dispatcher) Stop() {
	d.running.Store(false)
}

func (d *Dispatcher) IsRunning() bool {
	return d.running.Load()
}

// Run starts every subject and dispatches until all of them reach EOF, Stop is
// called or ctx is canceled. A Dispatcher runs at most once.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrDispatcherStarted
	}
	d.running.Store(true)
	return d.run(ctx)
}

// Start runs the loop on a new goroutine. Use Wait to block until it ends.
func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrDispatcherStarted
	}
	// Marked running before returning so an immediate Stop is not lost.
	d.running.Store(true)

	done := make(chan struct{})
	d.doneMu.Lock()
	d.done = done
	d.doneMu.Unlock()

	go func() {
		defer close(done)
		err := d.run(ctx)
		d.doneMu.Lock()
		d.err = err
		d.doneMu.Unlock()
	}()

	return nil
}

func (d *Dispatcher) run(ctx context.Context) error {
	defer d.running.Store(false)

	for idx, subject := range d.subjects {
		if err := subject.Start(); err != nil {
			d.stopSubjects(d.subjects[:idx])
			return fmt.Errorf("unable to start subject %d: %w", idx, err)
		}
	}

	d.StartEvent.Emit(ctx, d.currentTime)

	startTime := time.Now()
	var err error

	for d.running.Load() && !d.eof() {
		if err = ctx.Err(); err != nil {
			break
		}
		d.ticks++
		if !d.tick(ctx) {
			d.idleTicks++
			d.IdleEvent.Emit(ctx, d.currentTime)
		}
	}

	d.stopSubjects(d.subjects)
	d.StopEvent.Emit(ctx, d.currentTime)

	d.logger.Debug("dispatch loop finished",
		zap.String("component", dispatcherComponentName),
		zap.Uint64("ticks", d.ticks),
		zap.Uint64("idle_ticks", d.idleTicks),
		zap.Duration("run_time", time.Since(startTime)),
		zap.Error(err))

	return err
}

// Wait blocks until a loop launched by Start terminates and returns its error.
func (d *Dispatcher) Wait() error {
	d.doneMu.Lock()
	done := d.done
	d.doneMu.Unlock()

	if done == nil {
		return ErrNotStarted
	}
	<-done

	d.doneMu.Lock()
	defer d.doneMu.Unlock()
	return d.err
}

func (d *Dispatcher) Statistics() (ticks, idleTicks uint64) {
	return d.ticks, d.idleTicks
}

func (d *Dispatcher) tick(ctx context.Context) bool {
	var (
		minTime time.Time
		ready   []Subject
		peeks   = make([]time.Time, len(d.subjects))
	)

	for idx, subject := range d.subjects {
		if subject.EOF() {
			continue
		}
		peeks[idx] = subject.PeekTime()
		if !peeks[idx].IsZero() && (minTime.IsZero() || peeks[idx].Before(minTime)) {
			minTime = peeks[idx]
		}
	}

	for idx, subject := range d.subjects {
		if subject.EOF() {
			continue
		}
		if peeks[idx].IsZero() || peeks[idx].Equal(minTime) {
			ready = append(ready, subject)
		}
	}

	if !minTime.IsZero() {
		d.currentTime = minTime
	}

	dispatched := false
	for _, subject := range ready {
		if subject.Dispatch(ctx) {
			dispatched = true
		}
	}
	return dispatched
}

func (d *Dispatcher) eof() bool {
	for _, subject := range d.subjects {
		if !subject.EOF() {
			return false
		}
	}
	return true
}

func (d *Dispatcher) stopSubjects(subjects []Subject) {
	for idx, subject := range subjects {
		if err := subject.Stop(); err != nil {
			d.logger.Warn("unable to stop subject",
				zap.String("component", dispatcherComponentName),
				zap.Int("subject", idx),
				zap.Error(err))
		}
	}
}
