package recorder

import (
	"context"
	"fmt"
	"testing"

	"github.com/sopify/sopify/dbopen"
	_ "modernc.org/sqlite"
)

func newStateStore(t *testing.T) *StateStore {
	t.Helper()
	s, err := NewStateStore(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStateLoadFresh(t *testing.T) {
	s := newStateStore(t)
	st, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Authenticated || st.Recording || st.Token != "" || len(st.Screenshots) != 0 {
		t.Fatalf("fresh state not zero: %+v", st)
	}
}

func TestStateRoundTrip(t *testing.T) {
	s := newStateStore(t)
	ctx := context.Background()

	in := &State{
		Authenticated: true,
		Token:         "tok",
		User:          &User{ID: "u1", Name: "Alice"},
		Recording:     true,
		Screenshots: []Screenshot{
			{StepMeta: StepMeta{Title: "s1", URL: "https://a"}, ImgData: "data:image/png;base64,eA=="},
		},
		PreviousTabID: "t9",
	}
	if err := s.Save(ctx, in); err != nil {
		t.Fatal(err)
	}

	out, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Authenticated || out.Token != "tok" || !out.Recording || out.PreviousTabID != "t9" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.User == nil || out.User.Name != "Alice" {
		t.Fatalf("user lost: %+v", out.User)
	}
	if len(out.Screenshots) != 1 || out.Screenshots[0].Title != "s1" {
		t.Fatalf("screenshots lost: %+v", out.Screenshots)
	}
}

func TestAppendScreenshotCap(t *testing.T) {
	st := &State{}
	for i := 0; i < MaxScreenshots; i++ {
		st.AppendScreenshot(Screenshot{StepMeta: StepMeta{Title: fmt.Sprintf("s%d", i)}})
	}
	if len(st.Screenshots) != MaxScreenshots {
		t.Fatalf("len = %d", len(st.Screenshots))
	}

	count := st.AppendScreenshot(Screenshot{StepMeta: StepMeta{Title: "overflow"}})
	if count != MaxScreenshots {
		t.Fatalf("count = %d", count)
	}
	if st.Screenshots[0].Title != "s1" {
		t.Fatalf("oldest survived: %q", st.Screenshots[0].Title)
	}
	if st.Screenshots[MaxScreenshots-1].Title != "overflow" {
		t.Fatal("new entry not appended at tail")
	}
}
