package engine

import "sync/atomic"

// Controls are the stop and pause predicates polled once per tick.
type Controls interface {
	Stopped() bool
	Paused() bool
}

// Transport is the default Controls: two atomic flags written by the controller
// and read by the scheduler, plus a wake-up channel so a paused scheduler does
// not have to wait out its poll interval.
type Transport struct {
	stop    atomic.Bool
	pause   atomic.Bool
	changed chan struct{}
}

func NewTransport() *Transport {
	return &Transport{changed: make(chan struct{}, 1)}
}

func (t *Transport) Stopped() bool { return t.stop.Load() }
func (t *Transport) Paused() bool { return t.pause.Load() }

func (t *Transport) Stop() {
	t.stop.Store(true)
	t.notify()
}

func (t *Transport) Pause() {
	t.pause.Store(true)
	t.notify()
}

func (t *Transport) Resume() {
	t.pause.Store(false)
	t.notify()
}

// Reset clears both flags before a new session.
func (t *Transport) Reset() {
	t.stop.Store(false)
	t.pause.Store(false)
}

// Changed signals after any flag write.
func (t *Transport) Changed() <-chan struct{} {
	return t.changed
}

func (t *Transport) notify() {
	select {
	case t.changed <- struct{}{}:
	default:
	}
}

// FuncControls adapts two predicate functions.
type FuncControls struct {
	StopFn  func() bool
	PauseFn func() bool
}

func (f FuncControls) Stopped() bool { return f.StopFn != nil && f.StopFn() }
func (f FuncControls) Paused() bool { return f.PauseFn != nil && f.PauseFn() }
