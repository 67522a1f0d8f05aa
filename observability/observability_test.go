package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sopify/sopify/dbopen"
	_ "modernc.org/sqlite"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("visible")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("not JSON output: %v", err)
	}
	if entry["msg"] != "visible" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestLogEventAndCleanup(t *testing.T) {
	db := dbopen.OpenMemory(t)
	l, err := NewEventLogger(db)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	l.LogEvent(ctx, BusinessEvent{
		EventType:  "sop_created",
		EntityType: "sop",
		EntityID:   "sop1",
		UserID:     "u1",
		Action:     "create",
		Success:    true,
	})

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM business_event_logs`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 event, got %d", count)
	}

	// Backdate the event, then clean up.
	old := time.Now().Unix() - 90*86400
	if _, err := db.Exec(`UPDATE business_event_logs SET created_at = ?`, old); err != nil {
		t.Fatal(err)
	}
	if err := l.Cleanup(ctx, 30); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM business_event_logs`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected cleanup to remove event, got %d remaining", count)
	}
}

func TestCleanupDisabled(t *testing.T) {
	db := dbopen.OpenMemory(t)
	l, err := NewEventLogger(db)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Cleanup(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
}
