package socketio

import (
	"sync"
	"time"
)

// BroadcastDebouncer collapses bursts of coordinator change notifications
// into a single state broadcast. A download that flips three fields in
// quick succession results in one push, not three.
type BroadcastDebouncer struct {
	window   time.Duration
	callback func()

	mu      sync.Mutex
	pending bool
	timer   *time.Timer
	stopped bool
}

// NewBroadcastDebouncer creates a debouncer that invokes callback once the
// window elapses without further triggers.
func NewBroadcastDebouncer(window time.Duration, callback func()) *BroadcastDebouncer {
	return &BroadcastDebouncer{
		window:   window,
		callback: callback,
	}
}

// Trigger records that the state changed. The broadcast is deferred until
// the debounce window elapses without further triggers.
func (d *BroadcastDebouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush fires the callback if a trigger is pending.
func (d *BroadcastDebouncer) flush() {
	d.mu.Lock()
	fire := d.pending
	d.pending = false
	d.mu.Unlock()

	if fire && d.callback != nil {
		d.callback()
	}
}

// Stop prevents any further callbacks from firing.
func (d *BroadcastDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
}
