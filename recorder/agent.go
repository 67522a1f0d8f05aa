package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod/lib/proto"
)

// Agent ties the browser, the coordinator, and per-tab observers
// together. It tracks tab lifecycle through CDP target events: new pages
// get observers, destroyed pages are evicted, and navigations landing on
// the companion origin trigger a best-effort token re-sync.
type Agent struct {
	mgr    *Manager
	coord  *Coordinator
	logger *slog.Logger

	mu        sync.Mutex
	observers map[proto.TargetTargetID]*Observer
}

// NewAgent wires an Agent. The coordinator must already be running.
func NewAgent(mgr *Manager, coord *Coordinator, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		mgr:       mgr,
		coord:     coord,
		logger:    logger,
		observers: make(map[proto.TargetTargetID]*Observer),
	}
}

// Run opens the companion tab, performs the initial token sync, and then
// follows target events until the context ends.
func (a *Agent) Run(ctx context.Context) error {
	b := a.mgr.Browser()
	if b == nil {
		return fmt.Errorf("recorder: browser not started")
	}

	if _, err := a.mgr.OpenCompanion(ctx); err != nil {
		return err
	}
	if err := a.coord.SyncToken(ctx); err != nil {
		a.logger.Warn("recorder: initial token sync failed", "error", err)
	}

	wait := b.Context(ctx).EachEvent(
		func(e *proto.TargetTargetCreated) {
			a.onTargetCreated(ctx, e)
		},
		func(e *proto.TargetTargetDestroyed) {
			a.onTargetDestroyed(ctx, e)
		},
		func(e *proto.TargetTargetInfoChanged) {
			a.onTargetChanged(ctx, e)
		},
	)
	wait()
	return ctx.Err()
}

func (a *Agent) onTargetCreated(ctx context.Context, e *proto.TargetTargetCreated) {
	if e.TargetInfo.Type != proto.TargetTargetInfoTypePage || !ObservableURL(e.TargetInfo.URL) {
		return
	}

	b := a.mgr.Browser()
	page, err := b.PageFromTarget(e.TargetInfo.TargetID)
	if err != nil {
		a.logger.Warn("recorder: adopt tab failed", "target", e.TargetInfo.TargetID, "error", err)
		return
	}

	tabID := string(e.TargetInfo.TargetID)
	obs := NewObserver(page, tabID, e.TargetInfo.URL, a.coord, a.logger)

	a.mu.Lock()
	a.observers[e.TargetInfo.TargetID] = obs
	a.mu.Unlock()
	a.mgr.RegisterPage(tabID, page)

	if err := obs.Start(ctx); err != nil {
		a.logger.Warn("recorder: observer start failed", "tab", tabID, "error", err)
	}
}

func (a *Agent) onTargetDestroyed(ctx context.Context, e *proto.TargetTargetDestroyed) {
	a.mu.Lock()
	obs, ok := a.observers[e.TargetID]
	delete(a.observers, e.TargetID)
	a.mu.Unlock()
	if !ok {
		return
	}

	obs.Close()
	a.mgr.UnregisterPage(string(e.TargetID))
	if err := a.coord.TabClosed(ctx, string(e.TargetID)); err != nil {
		a.logger.Debug("recorder: tab eviction failed", "tab", e.TargetID, "error", err)
	}
}

// onTargetChanged re-syncs the token when a navigation completes on the
// companion origin. Failures are logged and swallowed; the session keeps
// its current token.
func (a *Agent) onTargetChanged(ctx context.Context, e *proto.TargetTargetInfoChanged) {
	if !strings.HasPrefix(e.TargetInfo.URL, a.mgr.cfg.CompanionURL) {
		return
	}
	if err := a.coord.SyncToken(ctx); err != nil {
		a.logger.Debug("recorder: token re-sync failed", "error", err)
	}
}
