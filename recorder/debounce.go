package recorder

import (
	"sync"
	"time"
)

// debounceWindows maps page event types to their settle time. Events not
// listed here (click, change) fire immediately.
var debounceWindows = map[string]time.Duration{
	"input":  300 * time.Millisecond,
	"scroll": 500 * time.Millisecond,
	"keyup":  1000 * time.Millisecond,
	"select": 500 * time.Millisecond,
}

// debouncer holds one retained timer handle per event type. Re-triggering
// an event type resets its timer; Stop cancels every pending handle via
// the same reference that created it.
type debouncer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	fire   func(eventType string, meta StepMeta)
}

func newDebouncer(fire func(eventType string, meta StepMeta)) *debouncer {
	return &debouncer{
		timers: make(map[string]*time.Timer),
		fire:   fire,
	}
}

// trigger schedules (or immediately fires) the capture for an event.
// Later triggers of the same type within the window replace earlier ones,
// so only the settled state is captured.
func (d *debouncer) trigger(eventType string, meta StepMeta) {
	window, ok := debounceWindows[eventType]
	if !ok {
		d.fire(eventType, meta)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[eventType]; ok {
		t.Stop()
	}
	d.timers[eventType] = time.AfterFunc(window, func() {
		d.mu.Lock()
		delete(d.timers, eventType)
		d.mu.Unlock()
		d.fire(eventType, meta)
	})
}

// stop cancels all pending timers.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for evt, t := range d.timers {
		t.Stop()
		delete(d.timers, evt)
	}
}
