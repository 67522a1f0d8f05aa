// Package recorder drives a Chrome instance to capture browsing sessions
// as SOP steps. A single coordinator goroutine owns all mutable session
// state; tab observers, browser callbacks, and the CLI talk to it only
// through its request mailbox. Captured screenshots accumulate in a
// FIFO-capped list that is persisted before any subscriber hears about it.
package recorder

import "time"

// MaxScreenshots caps the pending capture list. When full, the oldest
// entry is evicted before the new one is appended.
const MaxScreenshots = 50

// User identifies the authenticated account, mirroring the backend's
// token claims.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// StepMeta is what a tab observer knows about an interaction before the
// screenshot is taken.
type StepMeta struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url"`
	Timestamp   int64          `json:"timestamp"`
	Details     map[string]any `json:"details,omitempty"`
}

// Screenshot is one captured step: interaction metadata plus the PNG
// image as a data URI.
type Screenshot struct {
	StepMeta
	ImgData string `json:"imgData"`
}

// AuthState is the coordinator's view of the session.
type AuthState struct {
	Authenticated bool   `json:"isAuthenticated"`
	User          *User  `json:"user,omitempty"`
	Token         string `json:"-"`
}

// EventType tags coordinator broadcasts.
type EventType string

const (
	EventRecordingStateChanged EventType = "recording_state_changed"
	EventScreenshotCaptured    EventType = "screenshot_captured"
	EventAuthStateChanged      EventType = "auth_state_changed"
)

// Event is a coordinator broadcast. Count is only set for screenshot
// events; Recording only for recording-state events.
type Event struct {
	Type      EventType
	Recording bool
	Count     int
	Auth      AuthState
	At        time.Time
}
