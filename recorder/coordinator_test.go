package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sopify/sopify/dbopen"
	_ "modernc.org/sqlite"
)

type fakeShots struct {
	data string
	err  error
}

func (f *fakeShots) CaptureVisible(ctx context.Context, tabID string) (string, error) {
	return f.data, f.err
}

type fakeTab struct {
	id  string
	url string

	mu     sync.Mutex
	states []bool
	closed bool
}

func (f *fakeTab) ID() string  { return f.id }
func (f *fakeTab) URL() string { return f.url }
func (f *fakeTab) SetRecording(active bool) {
	f.mu.Lock()
	f.states = append(f.states, active)
	f.mu.Unlock()
}
func (f *fakeTab) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
func (f *fakeTab) lastState() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return false, false
	}
	return f.states[len(f.states)-1], true
}

type fakeUploader struct {
	mu       sync.Mutex
	payloads []SOPPayload
	err      error
}

func (f *fakeUploader) Upload(ctx context.Context, token string, payload SOPPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

type coordFixture struct {
	coord    *Coordinator
	store    *StateStore
	shots    *fakeShots
	uploader *fakeUploader
	cancel   context.CancelFunc
}

func newCoordinator(t *testing.T) *coordFixture {
	t.Helper()

	db := dbopen.OpenMemory(t)
	store, err := NewStateStore(db)
	if err != nil {
		t.Fatal(err)
	}

	shots := &fakeShots{data: "data:image/png;base64,aGVsbG8="}
	uploader := &fakeUploader{}

	ctx, cancel := context.WithCancel(context.Background())
	coord, err := NewCoordinator(ctx, CoordinatorConfig{
		Store:    store,
		Shots:    shots,
		Uploader: uploader,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	go coord.Run(ctx)
	t.Cleanup(cancel)

	return &coordFixture{coord: coord, store: store, shots: shots, uploader: uploader, cancel: cancel}
}

func (f *coordFixture) login(t *testing.T) {
	t.Helper()
	err := f.coord.Authenticate(context.Background(),
		"tok-123", &User{ID: "u1", Name: "Alice"})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCheckAuthFreshSession(t *testing.T) {
	f := newCoordinator(t)
	st, err := f.coord.CheckAuth(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Authenticated {
		t.Fatal("fresh session reports authenticated")
	}
}

func TestCaptureRequiresAuthentication(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()

	if _, err := f.coord.CaptureScreenshot(ctx, "t1", StepMeta{Title: "x"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := f.coord.ToggleRecording(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("toggle: expected ErrNotAuthenticated, got %v", err)
	}
	if err := f.coord.Save(ctx, "t", "d"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("save: expected ErrNotAuthenticated, got %v", err)
	}

	// Nothing persisted by the gated operations.
	st, err := f.store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Screenshots) != 0 || st.Recording {
		t.Fatalf("gated operation left state behind: %+v", st)
	}
}

func TestCapturePersistsBeforeBroadcast(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	f.login(t)

	events, err := f.coord.Subscribe(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}

	count, err := f.coord.CaptureScreenshot(ctx, "t1", StepMeta{Title: "step"})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count = %d", count)
	}

	ev := <-events
	if ev.Type != EventScreenshotCaptured || ev.Count != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}

	// By the time the event is observable, the capture is durable.
	st, err := f.store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Screenshots) != 1 || st.Screenshots[0].Title != "step" {
		t.Fatalf("capture not persisted: %+v", st.Screenshots)
	}
}

func TestCaptureListCapEvictsOldest(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	f.login(t)

	for i := 0; i < MaxScreenshots+3; i++ {
		count, err := f.coord.CaptureScreenshot(ctx, "t1", StepMeta{Title: fmt.Sprintf("step %d", i)})
		if err != nil {
			t.Fatal(err)
		}
		if count > MaxScreenshots {
			t.Fatalf("cap exceeded: %d", count)
		}
	}

	st, err := f.store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Screenshots) != MaxScreenshots {
		t.Fatalf("len = %d", len(st.Screenshots))
	}
	// The first three captures were evicted, order preserved.
	if st.Screenshots[0].Title != "step 3" {
		t.Fatalf("oldest not evicted first: %q", st.Screenshots[0].Title)
	}
	last := st.Screenshots[MaxScreenshots-1]
	if last.Title != fmt.Sprintf("step %d", MaxScreenshots+2) {
		t.Fatalf("newest missing: %q", last.Title)
	}
}

func TestCaptureInvalidPayload(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	f.login(t)

	f.shots.data = "nonsense"
	_, err := f.coord.CaptureScreenshot(ctx, "t1", StepMeta{})
	var invalid *InvalidDataError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidDataError, got %v", err)
	}

	f.shots.data = ""
	f.shots.err = errors.New("target crashed")
	_, err = f.coord.CaptureScreenshot(ctx, "t1", StepMeta{})
	var capErr *CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CaptureError, got %v", err)
	}
	if capErr.TabID != "t1" {
		t.Fatalf("tab id lost: %+v", capErr)
	}
}

func TestToggleRecordingPushesCompositeFlag(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	f.login(t)

	tab := &fakeTab{id: "t1", url: "https://example.com"}
	active, err := f.coord.TabReady(ctx, tab)
	if err != nil {
		t.Fatal(err)
	}
	if active {
		t.Fatal("composite flag true while not recording")
	}

	on, err := f.coord.ToggleRecording(ctx)
	if err != nil || !on {
		t.Fatalf("toggle on: %v %v", on, err)
	}
	if last, ok := tab.lastState(); !ok || !last {
		t.Fatalf("tab not told to record: %v %v", last, ok)
	}

	off, err := f.coord.ToggleRecording(ctx)
	if err != nil || off {
		t.Fatalf("toggle off: %v %v", off, err)
	}
	if last, _ := tab.lastState(); last {
		t.Fatal("tab not told to stop")
	}

	// A tab registering mid-session gets the composite flag back.
	f.coord.ToggleRecording(ctx)
	late := &fakeTab{id: "t2", url: "https://example.com/2"}
	active, err = f.coord.TabReady(ctx, late)
	if err != nil || !active {
		t.Fatalf("late tab composite = %v, err %v", active, err)
	}
}

func TestLogoutClearsSessionEverywhere(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	f.login(t)

	tab := &fakeTab{id: "t1"}
	f.coord.TabReady(ctx, tab)
	f.coord.ToggleRecording(ctx)
	f.coord.CaptureScreenshot(ctx, "t1", StepMeta{Title: "s"})

	if err := f.coord.Logout(ctx); err != nil {
		t.Fatal(err)
	}

	st, err := f.store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Authenticated || st.Token != "" || st.Recording || len(st.Screenshots) != 0 {
		t.Fatalf("logout left state behind: %+v", st)
	}
	if last, _ := tab.lastState(); last {
		t.Fatal("tab still recording after logout")
	}

	// Everything is gated again.
	if _, err := f.coord.CaptureScreenshot(ctx, "t1", StepMeta{}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("capture after logout: %v", err)
	}
}

func TestSaveUploadsAndClears(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	f.login(t)

	f.coord.CaptureScreenshot(ctx, "t1", StepMeta{Title: "first", URL: "https://a"})
	f.coord.CaptureScreenshot(ctx, "t1", StepMeta{Title: "second", URL: "https://b"})

	if err := f.coord.Save(ctx, "My flow", "desc"); err != nil {
		t.Fatal(err)
	}

	f.uploader.mu.Lock()
	payloads := f.uploader.payloads
	f.uploader.mu.Unlock()
	if len(payloads) != 1 {
		t.Fatalf("uploads = %d", len(payloads))
	}
	p := payloads[0]
	if p.Title != "My flow" || p.CreatedBy != "u1" || p.URL != "https://a" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if len(p.Steps) != 2 || p.Steps[0].Title != "first" || p.Steps[1].Title != "second" {
		t.Fatalf("step order lost: %+v", p.Steps)
	}

	st, _ := f.store.Load(ctx)
	if len(st.Screenshots) != 0 {
		t.Fatal("list not cleared after save")
	}
}

func TestSaveKeepsListOnUploadFailure(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	f.login(t)

	f.coord.CaptureScreenshot(ctx, "t1", StepMeta{Title: "s"})
	f.uploader.err = &SaveError{Status: 500, Body: "boom"}

	err := f.coord.Save(ctx, "t", "d")
	var saveErr *SaveError
	if !errors.As(err, &saveErr) {
		t.Fatalf("expected SaveError, got %v", err)
	}

	st, _ := f.store.Load(ctx)
	if len(st.Screenshots) != 1 {
		t.Fatal("list cleared despite failed upload")
	}
}

func TestShutdownClosesTabsAndRejectsRequests(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()

	tab := &fakeTab{id: "t1"}
	f.coord.TabReady(ctx, tab)

	if err := f.coord.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	tab.mu.Lock()
	closed := tab.closed
	tab.mu.Unlock()
	if !closed {
		t.Fatal("tab not closed on shutdown")
	}

	if _, err := f.coord.CheckAuth(ctx); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}
