package recorder

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"
)

//go:embed observer.js
var observerJS string

const detachJS = `() => { if (window.__sopifyDetach) window.__sopifyDetach(); }`

const (
	backoffBase          = 2 * time.Second
	maxReconnectAttempts = 5
)

// backoffDelay returns the wait before reconnect attempt n (0-based):
// 2s, 4s, 8s, 16s, 32s.
func backoffDelay(attempt int) time.Duration {
	return backoffBase << attempt
}

// pageEvent is what the injected script forwards for each interaction.
type pageEvent struct {
	Type      string `json:"type"`
	Snippet   string `json:"snippet"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// Observer records one tab. It moves between disconnected, connected,
// recording, and idle as the coordinator pushes the composite flag; a
// failed attach retries with exponential backoff and then stays quiet
// until the next push.
type Observer struct {
	page   *rod.Page
	tabID  string
	url    string
	coord  *Coordinator
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	debounce  *debouncer
	recording atomic.Bool
	capturing atomic.Bool

	mu         sync.Mutex
	exposed    bool
	stopExpose func() error
}

// NewObserver wraps a page. Call Start to register with the coordinator.
func NewObserver(page *rod.Page, tabID, url string, coord *Coordinator, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Observer{
		page:   page,
		tabID:  tabID,
		url:    url,
		coord:  coord,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	o.debounce = newDebouncer(o.fire)
	return o
}

func (o *Observer) ID() string  { return o.tabID }
func (o *Observer) URL() string { return o.url }

// Start registers with the coordinator and attaches immediately when a
// recording session is already active.
func (o *Observer) Start(ctx context.Context) error {
	active, err := o.coord.TabReady(ctx, o)
	if err != nil {
		return fmt.Errorf("recorder: register tab: %w", err)
	}
	if active {
		o.SetRecording(true)
	}
	return nil
}

// SetRecording is called by the coordinator with the composite flag.
// Attach runs off the coordinator goroutine; it retries with backoff and
// gives up silently after maxReconnectAttempts.
func (o *Observer) SetRecording(active bool) {
	if active == o.recording.Load() {
		return
	}
	o.recording.Store(active)
	if active {
		go o.attachWithBackoff()
	} else {
		go o.detach()
	}
}

// Close stops the observer and tells the page to drop its listeners.
func (o *Observer) Close() {
	o.recording.Store(false)
	o.debounce.stop()
	o.cancel()

	o.mu.Lock()
	stop := o.stopExpose
	o.stopExpose = nil
	o.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (o *Observer) attachWithBackoff() {
	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		if !o.recording.Load() {
			return
		}
		if err := o.attach(); err == nil {
			return
		} else {
			o.logger.Debug("recorder: attach failed",
				"tab", o.tabID, "attempt", attempt+1, "error", err)
		}

		select {
		case <-o.ctx.Done():
			return
		case <-time.After(backoffDelay(attempt)):
		}
	}
	o.logger.Warn("recorder: giving up attaching tab", "tab", o.tabID)
}

func (o *Observer) attach() error {
	o.mu.Lock()
	if !o.exposed {
		stop, err := o.page.Expose("__sopifyEvent", func(g gson.JSON) (any, error) {
			o.onEvent(g.Str())
			return nil, nil
		})
		if err != nil {
			o.mu.Unlock()
			return fmt.Errorf("expose binding: %w", err)
		}
		o.exposed = true
		o.stopExpose = stop
	}
	o.mu.Unlock()

	if _, err := o.page.Context(o.ctx).Eval(observerJS); err != nil {
		return fmt.Errorf("inject listeners: %w", err)
	}
	return nil
}

func (o *Observer) detach() {
	o.debounce.stop()
	if _, err := o.page.Context(o.ctx).Eval(detachJS); err != nil {
		o.logger.Debug("recorder: detach failed", "tab", o.tabID, "error", err)
	}
}

// onEvent handles one forwarded interaction: describe the element, skip
// password fields, then debounce into a capture.
func (o *Observer) onEvent(raw string) {
	if !o.recording.Load() {
		return
	}

	var ev pageEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		o.logger.Debug("recorder: bad page event", "tab", o.tabID, "error", err)
		return
	}

	meta := StepMeta{URL: ev.URL, Timestamp: ev.Timestamp}
	if ev.Snippet != "" {
		if info, err := DescribeElement(ev.Snippet); err == nil {
			if info.IsPasswordField() {
				return
			}
			meta.Title = StepTitle(ev.Type, info)
			meta.Details = info.Details()
		}
	}
	if meta.Title == "" {
		meta.Title = StepTitle(ev.Type, &ElementInfo{Tag: "PAGE"})
	}

	o.debounce.trigger(ev.Type, meta)
}

// fire runs after the debounce window settles. An in-flight capture drops
// the trigger instead of queueing it.
func (o *Observer) fire(eventType string, meta StepMeta) {
	if !o.recording.Load() {
		return
	}
	if !o.capturing.CompareAndSwap(false, true) {
		o.logger.Debug("recorder: capture in progress, dropping", "tab", o.tabID, "event", eventType)
		return
	}
	defer o.capturing.Store(false)

	ctx, cancel := context.WithTimeout(o.ctx, 15*time.Second)
	defer cancel()

	count, err := o.coord.CaptureScreenshot(ctx, o.tabID, meta)
	if err != nil {
		o.logger.Warn("recorder: capture failed", "tab", o.tabID, "error", err)
		return
	}
	o.logger.Info("recorder: step captured", "tab", o.tabID, "count", count)
}
