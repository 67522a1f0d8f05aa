package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBackendClientUpload(t *testing.T) {
	var got SOPPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sops/add-from-extension" {
			t.Errorf("path = %q", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewBackendClient(srv.URL, nil)
	err := c.Upload(context.Background(), "tok", SOPPayload{
		Title:       "t",
		Description: "d",
		Steps:       []Screenshot{{StepMeta: StepMeta{Title: "s1"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer tok" {
		t.Fatalf("auth header = %q", auth)
	}
	if got.Title != "t" || len(got.Steps) != 1 {
		t.Fatalf("payload mismatch: %+v", got)
	}
}

func TestBackendClientUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewBackendClient(srv.URL, nil)
	err := c.Upload(context.Background(), "tok", SOPPayload{Title: "t"})

	var saveErr *SaveError
	if !errors.As(err, &saveErr) {
		t.Fatalf("expected SaveError, got %v", err)
	}
	if saveErr.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", saveErr.Status)
	}
}
