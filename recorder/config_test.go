package recorder

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BackendURL != "http://localhost:8080" || cfg.StatePath != "recorder.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Headless {
		t.Fatal("recorder should default to headful")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recorder.yaml")
	raw := []byte("backend_url: https://api.example.com\nheadless: true\nlog_level: debug\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BackendURL != "https://api.example.com" || !cfg.Headless || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	// Unset fields still get defaults.
	if cfg.CompanionURL != "http://localhost:3000" {
		t.Fatalf("companion default lost: %q", cfg.CompanionURL)
	}
}

func TestObservableURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com", true},
		{"http://localhost:3000/sops", true},
		{"chrome://settings", false},
		{"edge://flags", false},
		{"chrome-extension://abc/popup.html", false},
		{"about:blank", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ObservableURL(tt.url); got != tt.want {
			t.Errorf("ObservableURL(%q) = %v", tt.url, got)
		}
	}
}
