package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TabHandle is the coordinator's view of an observed tab. SetRecording
// pushes the composite authenticated-and-recording flag; the observer
// attaches or detaches its page listeners in response.
type TabHandle interface {
	ID() string
	URL() string
	SetRecording(active bool)
	Close()
}

// Screenshotter takes a lossless capture of a tab's viewport and returns
// it as an image data URI.
type Screenshotter interface {
	CaptureVisible(ctx context.Context, tabID string) (string, error)
}

// TokenSource reads the companion web app's stored token, typically by
// evaluating localStorage in its page.
type TokenSource interface {
	ReadPageToken(ctx context.Context) (token string, user *User, err error)
}

// Uploader posts a finished session to the backend.
type Uploader interface {
	Upload(ctx context.Context, token string, payload SOPPayload) error
}

// SOPPayload is the add-from-extension request body.
type SOPPayload struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Steps       []Screenshot `json:"steps"`
	URL         string       `json:"url,omitempty"`
	Timestamp   int64        `json:"timestamp"`
	CreatedBy   string       `json:"createdBy,omitempty"`
}

// request is the coordinator's mailbox union. Every variant carries a
// reply channel that fires exactly once.
type request interface{ isRequest() }

type checkAuthReq struct {
	reply chan AuthState
}

type tabReadyReq struct {
	tab   TabHandle
	reply chan bool // composite authenticated && recording flag
}

type tabClosedReq struct {
	tabID string
	reply chan struct{}
}

type captureReq struct {
	ctx   context.Context
	tabID string
	meta  StepMeta
	reply chan captureReply
}

type captureReply struct {
	count int
	err   error
}

type toggleReq struct {
	reply chan toggleReply
}

type toggleReply struct {
	recording bool
	err       error
}

type syncTokenReq struct {
	ctx   context.Context
	reply chan error
}

type authenticateReq struct {
	token string
	user  *User
	reply chan error
}

type logoutReq struct {
	reply chan error
}

type saveReq struct {
	ctx         context.Context
	title       string
	description string
	reply       chan error
}

type subscribeReq struct {
	buffer int
	reply  chan chan Event
}

type shutdownReq struct {
	reply chan struct{}
}

func (checkAuthReq) isRequest()    {}
func (tabReadyReq) isRequest()     {}
func (tabClosedReq) isRequest()    {}
func (captureReq) isRequest()      {}
func (toggleReq) isRequest()       {}
func (syncTokenReq) isRequest()    {}
func (authenticateReq) isRequest() {}
func (logoutReq) isRequest()       {}
func (saveReq) isRequest()         {}
func (subscribeReq) isRequest()    {}
func (shutdownReq) isRequest()     {}

// Coordinator owns the recorder session. All state transitions happen on
// its goroutine; public methods are thin mailbox wrappers.
type Coordinator struct {
	requests chan request
	done     chan struct{}

	store    *StateStore
	state    *State
	tabs     map[string]TabHandle
	shots    Screenshotter
	tokens   TokenSource
	uploader Uploader
	subs     []chan Event
	logger   *slog.Logger
}

// CoordinatorConfig wires the coordinator's collaborators. Store is
// required; the rest may be nil when the corresponding operation is not
// used (tests exercise subsets).
type CoordinatorConfig struct {
	Store    *StateStore
	Shots    Screenshotter
	Tokens   TokenSource
	Uploader Uploader
	Logger   *slog.Logger
}

// NewCoordinator loads persisted state and returns a stopped coordinator.
// Call Run on its own goroutine.
func NewCoordinator(ctx context.Context, cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("recorder: Store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	state, err := cfg.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		requests: make(chan request, 64),
		done:     make(chan struct{}),
		store:    cfg.Store,
		state:    state,
		tabs:     make(map[string]TabHandle),
		shots:    cfg.Shots,
		tokens:   cfg.Tokens,
		uploader: cfg.Uploader,
		logger:   cfg.Logger,
	}, nil
}

// Run processes the mailbox until Shutdown or context cancellation. It
// must run on exactly one goroutine.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.closeTabs()
			close(c.done)
			return
		case req := <-c.requests:
			switch r := req.(type) {
			case checkAuthReq:
				r.reply <- c.authState()
			case tabReadyReq:
				c.handleTabReady(r)
			case tabClosedReq:
				c.handleTabClosed(r)
			case captureReq:
				r.reply <- c.handleCapture(r)
			case toggleReq:
				r.reply <- c.handleToggle(r)
			case syncTokenReq:
				r.reply <- c.handleSyncToken(r)
			case authenticateReq:
				r.reply <- c.handleAuthenticate(r)
			case logoutReq:
				r.reply <- c.handleLogout()
			case saveReq:
				r.reply <- c.handleSave(r)
			case subscribeReq:
				r.reply <- c.handleSubscribe(r)
			case shutdownReq:
				c.closeTabs()
				close(c.done)
				r.reply <- struct{}{}
				return
			default:
				c.logger.Error("recorder: unknown request type", "request", fmt.Sprintf("%T", req))
			}
		}
	}
}

func (c *Coordinator) authState() AuthState {
	return AuthState{
		Authenticated: c.state.Authenticated && c.state.Token != "",
		User:          c.state.User,
		Token:         c.state.Token,
	}
}

func (c *Coordinator) composite() bool {
	return c.state.Authenticated && c.state.Token != "" && c.state.Recording
}

func (c *Coordinator) handleTabReady(r tabReadyReq) {
	id := r.tab.ID()
	if prev, ok := c.tabs[id]; ok && prev != r.tab {
		prev.Close()
	}
	c.tabs[id] = r.tab
	c.state.PreviousTabID = id
	if err := c.store.Save(context.Background(), c.state); err != nil {
		c.logger.Error("recorder: persist state", "error", err)
	}
	r.reply <- c.composite()
}

func (c *Coordinator) handleTabClosed(r tabClosedReq) {
	delete(c.tabs, r.tabID)
	if c.state.PreviousTabID == r.tabID {
		c.state.PreviousTabID = ""
	}
	r.reply <- struct{}{}
}

func (c *Coordinator) handleCapture(r captureReq) captureReply {
	if !c.state.Authenticated || c.state.Token == "" {
		return captureReply{err: ErrNotAuthenticated}
	}
	if c.shots == nil {
		return captureReply{err: &CaptureError{TabID: r.tabID, Cause: fmt.Errorf("no screenshotter configured")}}
	}

	data, err := c.shots.CaptureVisible(r.ctx, r.tabID)
	if err != nil {
		return captureReply{err: &CaptureError{TabID: r.tabID, Cause: err}}
	}
	if !strings.HasPrefix(data, "data:image") {
		return captureReply{err: &InvalidDataError{Reason: "payload is not an image data URI"}}
	}

	count := c.state.AppendScreenshot(Screenshot{StepMeta: r.meta, ImgData: data})
	if err := c.store.Save(r.ctx, c.state); err != nil {
		return captureReply{err: fmt.Errorf("recorder: persist capture: %w", err)}
	}
	// Broadcast only after the capture is durable.
	c.broadcast(Event{Type: EventScreenshotCaptured, Count: count, At: time.Now()})
	return captureReply{count: count}
}

func (c *Coordinator) handleToggle(r toggleReq) toggleReply {
	if !c.state.Authenticated || c.state.Token == "" {
		return toggleReply{err: ErrNotAuthenticated}
	}

	c.state.Recording = !c.state.Recording
	if err := c.store.Save(context.Background(), c.state); err != nil {
		c.state.Recording = !c.state.Recording
		return toggleReply{err: fmt.Errorf("recorder: persist toggle: %w", err)}
	}

	c.pushRecording()
	c.broadcast(Event{Type: EventRecordingStateChanged, Recording: c.state.Recording, At: time.Now()})
	return toggleReply{recording: c.state.Recording}
}

func (c *Coordinator) handleSyncToken(r syncTokenReq) error {
	if c.tokens == nil {
		return fmt.Errorf("recorder: no token source configured")
	}
	token, user, err := c.tokens.ReadPageToken(r.ctx)
	if err != nil {
		return fmt.Errorf("recorder: read page token: %w", err)
	}
	if token == "" || token == c.state.Token {
		return nil
	}
	return c.setAuth(token, user)
}

func (c *Coordinator) handleAuthenticate(r authenticateReq) error {
	if r.token == "" {
		return &InvalidDataError{Reason: "empty token"}
	}
	return c.setAuth(r.token, r.user)
}

func (c *Coordinator) setAuth(token string, user *User) error {
	c.state.Authenticated = true
	c.state.Token = token
	c.state.User = user
	if err := c.store.Save(context.Background(), c.state); err != nil {
		return fmt.Errorf("recorder: persist auth: %w", err)
	}
	c.broadcast(Event{Type: EventAuthStateChanged, Auth: c.authState(), At: time.Now()})
	return nil
}

// handleLogout clears the session: recording stops on every tab and the
// pending screenshot list is discarded.
func (c *Coordinator) handleLogout() error {
	c.state.Authenticated = false
	c.state.Token = ""
	c.state.User = nil
	c.state.Recording = false
	c.state.Screenshots = c.state.Screenshots[:0]
	if err := c.store.Save(context.Background(), c.state); err != nil {
		return fmt.Errorf("recorder: persist logout: %w", err)
	}

	c.pushRecording()
	c.broadcast(Event{Type: EventRecordingStateChanged, Recording: false, At: time.Now()})
	c.broadcast(Event{Type: EventAuthStateChanged, Auth: c.authState(), At: time.Now()})
	return nil
}

func (c *Coordinator) handleSave(r saveReq) error {
	if !c.state.Authenticated || c.state.Token == "" {
		return ErrNotAuthenticated
	}
	if c.uploader == nil {
		return fmt.Errorf("recorder: no uploader configured")
	}
	if len(c.state.Screenshots) == 0 {
		return &InvalidDataError{Reason: "no screenshots to save"}
	}

	payload := SOPPayload{
		Title:       r.title,
		Description: r.description,
		Steps:       append([]Screenshot(nil), c.state.Screenshots...),
		URL:         c.state.Screenshots[0].URL,
		Timestamp:   time.Now().UnixMilli(),
	}
	if c.state.User != nil {
		payload.CreatedBy = c.state.User.ID
	}

	if err := c.uploader.Upload(r.ctx, c.state.Token, payload); err != nil {
		return err
	}

	c.state.Screenshots = c.state.Screenshots[:0]
	if err := c.store.Save(r.ctx, c.state); err != nil {
		return fmt.Errorf("recorder: persist cleared list: %w", err)
	}
	c.broadcast(Event{Type: EventScreenshotCaptured, Count: 0, At: time.Now()})
	return nil
}

func (c *Coordinator) handleSubscribe(r subscribeReq) chan Event {
	if r.buffer <= 0 {
		r.buffer = 16
	}
	ch := make(chan Event, r.buffer)
	c.subs = append(c.subs, ch)
	return ch
}

// pushRecording fans the composite flag out to every registered tab.
func (c *Coordinator) pushRecording() {
	active := c.composite()
	for _, tab := range c.tabs {
		tab.SetRecording(active)
	}
}

// broadcast delivers to subscribers without blocking; a full subscriber
// drops the event.
func (c *Coordinator) broadcast(ev Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.Warn("recorder: subscriber full, dropping event", "type", ev.Type)
		}
	}
}

func (c *Coordinator) closeTabs() {
	for _, tab := range c.tabs {
		tab.Close()
	}
	c.tabs = make(map[string]TabHandle)
}

// send delivers a request unless the coordinator is stopped or the
// context expires.
func (c *Coordinator) send(ctx context.Context, req request) error {
	select {
	case <-c.done:
		return ErrShuttingDown
	default:
	}
	select {
	case c.requests <- req:
		return nil
	case <-c.done:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckAuth reports the current auth state without side effects.
func (c *Coordinator) CheckAuth(ctx context.Context) (AuthState, error) {
	req := checkAuthReq{reply: make(chan AuthState, 1)}
	if err := c.send(ctx, req); err != nil {
		return AuthState{}, err
	}
	select {
	case st := <-req.reply:
		return st, nil
	case <-c.done:
		return AuthState{}, ErrShuttingDown
	case <-ctx.Done():
		return AuthState{}, ctx.Err()
	}
}

// TabReady registers an observed tab and returns whether it should start
// recording immediately.
func (c *Coordinator) TabReady(ctx context.Context, tab TabHandle) (bool, error) {
	req := tabReadyReq{tab: tab, reply: make(chan bool, 1)}
	if err := c.send(ctx, req); err != nil {
		return false, err
	}
	select {
	case active := <-req.reply:
		return active, nil
	case <-c.done:
		return false, ErrShuttingDown
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// TabClosed evicts a tab from the registry.
func (c *Coordinator) TabClosed(ctx context.Context, tabID string) error {
	req := tabClosedReq{tabID: tabID, reply: make(chan struct{}, 1)}
	if err := c.send(ctx, req); err != nil {
		return err
	}
	select {
	case <-req.reply:
		return nil
	case <-c.done:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CaptureScreenshot takes a screenshot of the tab and appends it to the
// pending list. Returns the count after the append.
func (c *Coordinator) CaptureScreenshot(ctx context.Context, tabID string, meta StepMeta) (int, error) {
	req := captureReq{ctx: ctx, tabID: tabID, meta: meta, reply: make(chan captureReply, 1)}
	if err := c.send(ctx, req); err != nil {
		return 0, err
	}
	select {
	case rep := <-req.reply:
		return rep.count, rep.err
	case <-c.done:
		return 0, ErrShuttingDown
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ToggleRecording flips the recording flag and pushes the new composite
// state to every tab.
func (c *Coordinator) ToggleRecording(ctx context.Context) (bool, error) {
	req := toggleReq{reply: make(chan toggleReply, 1)}
	if err := c.send(ctx, req); err != nil {
		return false, err
	}
	select {
	case rep := <-req.reply:
		return rep.recording, rep.err
	case <-c.done:
		return false, ErrShuttingDown
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// SyncToken reads the companion page's stored token and adopts it when it
// differs from the current one. Best-effort callers log and swallow the
// error.
func (c *Coordinator) SyncToken(ctx context.Context) error {
	req := syncTokenReq{ctx: ctx, reply: make(chan error, 1)}
	if err := c.send(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-req.reply:
		return err
	case <-c.done:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Authenticate adopts a token and user directly.
func (c *Coordinator) Authenticate(ctx context.Context, token string, user *User) error {
	req := authenticateReq{token: token, user: user, reply: make(chan error, 1)}
	if err := c.send(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-req.reply:
		return err
	case <-c.done:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Logout clears the session, stops recording everywhere, and discards
// pending screenshots.
func (c *Coordinator) Logout(ctx context.Context) error {
	req := logoutReq{reply: make(chan error, 1)}
	if err := c.send(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-req.reply:
		return err
	case <-c.done:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Save uploads the pending screenshots as a new SOP and clears the list
// on success.
func (c *Coordinator) Save(ctx context.Context, title, description string) error {
	req := saveReq{ctx: ctx, title: title, description: description, reply: make(chan error, 1)}
	if err := c.send(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-req.reply:
		return err
	case <-c.done:
		return ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers an event listener. The channel is buffered; slow
// consumers lose events rather than blocking the coordinator.
func (c *Coordinator) Subscribe(ctx context.Context, buffer int) (<-chan Event, error) {
	req := subscribeReq{buffer: buffer, reply: make(chan chan Event, 1)}
	if err := c.send(ctx, req); err != nil {
		return nil, err
	}
	select {
	case ch := <-req.reply:
		return ch, nil
	case <-c.done:
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops the run loop and closes all tabs.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	req := shutdownReq{reply: make(chan struct{}, 1)}
	if err := c.send(ctx, req); err != nil {
		return err
	}
	select {
	case <-req.reply:
		return nil
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
