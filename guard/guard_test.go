package guard

import (
	"strings"
	"testing"
)

func TestValidateSecret(t *testing.T) {
	if err := ValidateSecret(make([]byte, MinSecretLen)); err != nil {
		t.Fatalf("32-byte secret rejected: %v", err)
	}
	if err := ValidateSecret([]byte("short")); err == nil {
		t.Fatal("short secret accepted")
	}
}

func TestSafePath(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"abc.png", false},
		{"sub/abc.png", false},
		{"../etc/passwd", true},
		{"sub/../../etc/passwd", true},
	}
	for _, tt := range tests {
		_, err := SafePath("/data/uploads", tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("SafePath(%q): err=%v, wantErr=%v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"sop-123_a.png", false},
		{"", true},
		{"a/b", true},
		{"a b", true},
		{strings.Repeat("x", 257), true},
	}
	for _, tt := range tests {
		err := ValidateIdentifier(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateIdentifier(%q): err=%v, wantErr=%v", tt.id, err, tt.wantErr)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 10)
	if err != nil || string(data) != "hello" {
		t.Fatalf("got %q, %v", data, err)
	}
	if _, err := LimitedReadAll(strings.NewReader("hello world"), 5); err == nil {
		t.Fatal("oversized read accepted")
	}
}
