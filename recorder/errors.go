package recorder

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated gates every operation that needs a logged-in
// session: capture, toggle, save.
var ErrNotAuthenticated = errors.New("recorder: not authenticated")

// ErrShuttingDown is returned for requests that arrive after Shutdown.
var ErrShuttingDown = errors.New("recorder: coordinator shutting down")

// CaptureError wraps a platform failure while taking a screenshot.
type CaptureError struct {
	TabID string
	Cause error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("recorder: capture failed on tab %s: %v", e.TabID, e.Cause)
}

func (e *CaptureError) Unwrap() error { return e.Cause }

// InvalidDataError is returned when a capture payload is not an image
// data URI.
type InvalidDataError struct {
	Reason string
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("recorder: invalid capture data: %s", e.Reason)
}

// SaveError wraps a backend rejection when uploading a finished session.
type SaveError struct {
	Status int
	Body   string
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("recorder: save rejected with status %d: %s", e.Status, e.Body)
}
