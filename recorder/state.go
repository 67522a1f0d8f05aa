package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const stateSchema = `
CREATE TABLE IF NOT EXISTS recorder_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// State is the persisted session: auth, recording flag, pending
// screenshots. Only the coordinator goroutine reads or writes it, which
// is what makes the append/evict/persist sequence race-free.
type State struct {
	Authenticated bool         `json:"isAuthenticated"`
	Token         string       `json:"token,omitempty"`
	User          *User        `json:"user,omitempty"`
	Recording     bool         `json:"isRecording"`
	Screenshots   []Screenshot `json:"screenshots"`
	PreviousTabID string       `json:"previousTabId,omitempty"`
}

// AppendScreenshot adds a capture, evicting the oldest entry when the
// list is at MaxScreenshots. Returns the new count.
func (s *State) AppendScreenshot(shot Screenshot) int {
	if len(s.Screenshots) >= MaxScreenshots {
		s.Screenshots = append(s.Screenshots[:0], s.Screenshots[1:]...)
	}
	s.Screenshots = append(s.Screenshots, shot)
	return len(s.Screenshots)
}

// StateStore persists the recorder session in a SQLite key/value table,
// one key per logical field so partial writes stay cheap.
type StateStore struct {
	db *sql.DB
}

// NewStateStore applies the schema and returns a store.
func NewStateStore(db *sql.DB) (*StateStore, error) {
	if _, err := db.Exec(stateSchema); err != nil {
		return nil, fmt.Errorf("recorder: apply state schema: %w", err)
	}
	return &StateStore{db: db}, nil
}

// Load reads the full persisted state. Missing keys yield zero values, so
// a fresh database loads as a logged-out, idle session.
func (s *StateStore) Load(ctx context.Context) (*State, error) {
	st := &State{Screenshots: []Screenshot{}}
	fields := map[string]any{
		"isAuthenticated": &st.Authenticated,
		"token":           &st.Token,
		"user":            &st.User,
		"isRecording":     &st.Recording,
		"screenshots":     &st.Screenshots,
		"previousTabId":   &st.PreviousTabID,
	}
	for key, dst := range fields {
		if err := s.get(ctx, key, dst); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Save writes the full state.
func (s *StateStore) Save(ctx context.Context, st *State) error {
	fields := map[string]any{
		"isAuthenticated": st.Authenticated,
		"token":           st.Token,
		"user":            st.User,
		"isRecording":     st.Recording,
		"screenshots":     st.Screenshots,
		"previousTabId":   st.PreviousTabID,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recorder: begin state tx: %w", err)
	}
	defer tx.Rollback()

	for key, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("recorder: marshal state %s: %w", key, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO recorder_state (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, string(raw))
		if err != nil {
			return fmt.Errorf("recorder: write state %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *StateStore) get(ctx context.Context, key string, dst any) error {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM recorder_state WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("recorder: read state %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("recorder: decode state %s: %w", key, err)
	}
	return nil
}
