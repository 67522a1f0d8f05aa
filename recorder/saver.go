package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BackendClient uploads finished sessions to the SOPify backend.
type BackendClient struct {
	baseURL string
	client  *http.Client
}

// NewBackendClient points at the backend root, e.g. "http://localhost:8080".
func NewBackendClient(baseURL string, client *http.Client) *BackendClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &BackendClient{baseURL: baseURL, client: client}
}

// Upload posts the payload to /sops/add-from-extension with the session's
// bearer token.
func (b *BackendClient) Upload(ctx context.Context, token string, payload SOPPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("recorder: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/sops/add-from-extension", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("recorder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("recorder: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &SaveError{Status: resp.StatusCode, Body: string(raw)}
	}
	return nil
}
