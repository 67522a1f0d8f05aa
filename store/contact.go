package store

import (
	"context"
	"fmt"
	"time"
)

// Contact is a message submitted through the public contact form.
type Contact struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateContact persists a contact entry. All three fields are required.
func (s *Store) CreateContact(ctx context.Context, name, email, detail string) (*Contact, error) {
	switch {
	case name == "":
		return nil, &ValidationError{Field: "name"}
	case email == "":
		return nil, &ValidationError{Field: "email"}
	case detail == "":
		return nil, &ValidationError{Field: "detail"}
	}

	c := &Contact{
		ID:        s.newID(),
		Name:      name,
		Email:     email,
		Detail:    detail,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, name, email, detail, created_at) VALUES (?,?,?,?,?)`,
		c.ID, c.Name, c.Email, c.Detail, c.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("store: insert contact: %w", err)
	}
	return c, nil
}

// ListContacts returns all contact entries, newest first.
func (s *Store) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, detail, created_at FROM contacts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: query contacts: %w", err)
	}
	defer rows.Close()

	list := []Contact{}
	for rows.Next() {
		var c Contact
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan contact: %w", err)
		}
		c.CreatedAt = time.UnixMilli(createdAt).UTC()
		list = append(list, c)
	}
	return list, rows.Err()
}
