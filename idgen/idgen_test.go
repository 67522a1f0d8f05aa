package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate id: %s", id)
		}
		seen[id] = true
		if _, err := Parse(id); err != nil {
			t.Fatalf("generated id does not parse: %v", err)
		}
	}
}

func TestNanoID(t *testing.T) {
	gen := NanoID(12)
	id := gen()
	if len(id) != 12 {
		t.Fatalf("expected length 12, got %d", len(id))
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdefghijklmnopqrstuvwxyz", r) {
			t.Fatalf("unexpected character %q", r)
		}
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("sop_", NanoID(8))
	id := gen()
	if !strings.HasPrefix(id, "sop_") {
		t.Fatalf("missing prefix: %s", id)
	}
	if len(id) != 12 {
		t.Fatalf("unexpected length: %s", id)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("garbage accepted")
	}
}
