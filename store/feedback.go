package store

import (
	"context"
	"fmt"
	"time"
)

// Feedback is a user comment about the application. The name comes from the
// authenticated caller's token claims, never from the request body.
type Feedback struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateFeedback persists a feedback entry. Message must be non-empty.
func (s *Store) CreateFeedback(ctx context.Context, name, message string) (*Feedback, error) {
	if message == "" {
		return nil, &ValidationError{Field: "message"}
	}
	if name == "" {
		return nil, &ValidationError{Field: "name"}
	}

	f := &Feedback{
		ID:        s.newID(),
		Name:      name,
		Message:   message,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, name, message, created_at) VALUES (?,?,?,?)`,
		f.ID, f.Name, f.Message, f.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("store: insert feedback: %w", err)
	}
	return f, nil
}

// ListFeedback returns all feedback entries, newest first.
func (s *Store) ListFeedback(ctx context.Context) ([]Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, message, created_at FROM feedback ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: query feedback: %w", err)
	}
	defer rows.Close()

	list := []Feedback{}
	for rows.Next() {
		var f Feedback
		var createdAt int64
		if err := rows.Scan(&f.ID, &f.Name, &f.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan feedback: %w", err)
		}
		f.CreatedAt = time.UnixMilli(createdAt).UTC()
		list = append(list, f)
	}
	return list, rows.Err()
}
