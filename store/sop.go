package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Image holds the metadata of an SOP's uploaded illustration file. The bytes
// live on disk under the uploads directory; only the path is stored.
type Image struct {
	Filename    string `json:"filename"`
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Step is one entry in an SOP's ordered sequence. Order is array position;
// a Step is owned exclusively by its parent SOP.
type Step struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	ImgData     string         `json:"imgData,omitempty"` // inline data URI from the recorder
	URL         string         `json:"url,omitempty"`
	Timestamp   int64          `json:"timestamp,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// SOP is a Standard Operating Procedure document.
type SOP struct {
	ID            string    `json:"_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Steps         []Step    `json:"steps"`
	Image         *Image    `json:"image,omitempty"`
	FromExtension bool      `json:"fromExtension"`
	URL           string    `json:"url,omitempty"`
	Timestamp     int64     `json:"timestamp,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	CreatedBy     string    `json:"createdBy,omitempty"`
}

// CreateSOP persists a new SOP. The id and timestamps are filled in; title
// and description must be non-empty.
func (s *Store) CreateSOP(ctx context.Context, sop *SOP) error {
	if sop.Title == "" {
		return &ValidationError{Field: "title"}
	}
	if sop.Description == "" {
		return &ValidationError{Field: "description"}
	}

	sop.ID = s.newID()
	now := time.Now().UTC().Truncate(time.Millisecond)
	sop.CreatedAt = now
	sop.UpdatedAt = now
	if sop.Steps == nil {
		sop.Steps = []Step{}
	}
	if sop.Timestamp == 0 {
		sop.Timestamp = now.UnixMilli()
	}

	steps, err := json.Marshal(sop.Steps)
	if err != nil {
		return fmt.Errorf("store: marshal steps: %w", err)
	}

	var imgFilename, imgPath, imgContentType sql.NullString
	var imgSize sql.NullInt64
	if sop.Image != nil {
		imgFilename = sql.NullString{String: sop.Image.Filename, Valid: true}
		imgPath = sql.NullString{String: sop.Image.Path, Valid: true}
		imgContentType = sql.NullString{String: sop.Image.ContentType, Valid: true}
		imgSize = sql.NullInt64{Int64: sop.Image.Size, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sops (
			id, title, description, steps,
			image_filename, image_path, image_content_type, image_size,
			from_extension, url, timestamp, created_at, updated_at, created_by
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sop.ID, sop.Title, sop.Description, string(steps),
		imgFilename, imgPath, imgContentType, imgSize,
		boolToInt(sop.FromExtension), sop.URL, sop.Timestamp,
		now.UnixMilli(), now.UnixMilli(), nullable(sop.CreatedBy))
	if err != nil {
		return fmt.Errorf("store: insert sop: %w", err)
	}
	return nil
}

// ListSOPs returns every SOP, most recently updated first.
func (s *Store) ListSOPs(ctx context.Context) ([]SOP, error) {
	return s.querySOPs(ctx, `SELECT `+sopColumns+` FROM sops ORDER BY updated_at DESC`)
}

// ListSOPsByUser returns the SOPs owned by userID, most recently updated
// first. When extensionOnly is set, only recorder-originated documents are
// returned.
func (s *Store) ListSOPsByUser(ctx context.Context, userID string, extensionOnly bool) ([]SOP, error) {
	q := `SELECT ` + sopColumns + ` FROM sops WHERE created_by = ?`
	args := []any{userID}
	if extensionOnly {
		q += ` AND from_extension = 1`
	}
	q += ` ORDER BY updated_at DESC`
	return s.querySOPs(ctx, q, args...)
}

// GetSOP returns the SOP with the given id, or ErrNotFound.
func (s *Store) GetSOP(ctx context.Context, id string) (*SOP, error) {
	sops, err := s.querySOPs(ctx, `SELECT `+sopColumns+` FROM sops WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(sops) == 0 {
		return nil, ErrNotFound
	}
	return &sops[0], nil
}

// SOPUpdate carries the replacement fields for UpdateSOP. Title and
// description are always replaced. Image is replaced only when non-nil.
// Steps are replaced wholesale when non-nil — the client edits the whole
// array, nothing is merged.
type SOPUpdate struct {
	Title       string
	Description string
	Image       *Image
	Steps       []Step
}

// UpdateSOP replaces the mutable fields of an SOP and bumps updated_at.
// Returns the updated document, or ErrNotFound when the id is unknown.
func (s *Store) UpdateSOP(ctx context.Context, id string, upd SOPUpdate) (*SOP, error) {
	now := time.Now().UTC().UnixMilli()

	q := `UPDATE sops SET title = ?, description = ?, updated_at = ?`
	args := []any{upd.Title, upd.Description, now}

	if upd.Image != nil {
		q += `, image_filename = ?, image_path = ?, image_content_type = ?, image_size = ?`
		args = append(args, upd.Image.Filename, upd.Image.Path, upd.Image.ContentType, upd.Image.Size)
	}
	if upd.Steps != nil {
		steps, err := json.Marshal(upd.Steps)
		if err != nil {
			return nil, fmt.Errorf("store: marshal steps: %w", err)
		}
		q += `, steps = ?`
		args = append(args, string(steps))
	}
	q += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: update sop: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("store: update sop: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetSOP(ctx, id)
}

// DeleteSOP removes the SOP and returns the deleted document so the caller
// can unlink its image file. Returns ErrNotFound when the id is unknown.
func (s *Store) DeleteSOP(ctx context.Context, id string) (*SOP, error) {
	sop, err := s.GetSOP(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sops WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("store: delete sop: %w", err)
	}
	return sop, nil
}

const sopColumns = `id, title, description, steps,
	image_filename, image_path, image_content_type, image_size,
	from_extension, url, timestamp, created_at, updated_at, created_by`

func (s *Store) querySOPs(ctx context.Context, q string, args ...any) ([]SOP, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query sops: %w", err)
	}
	defer rows.Close()

	sops := []SOP{}
	for rows.Next() {
		var sop SOP
		var steps string
		var imgFilename, imgPath, imgContentType, createdBy sql.NullString
		var imgSize sql.NullInt64
		var fromExt int
		var createdAt, updatedAt int64

		if err := rows.Scan(&sop.ID, &sop.Title, &sop.Description, &steps,
			&imgFilename, &imgPath, &imgContentType, &imgSize,
			&fromExt, &sop.URL, &sop.Timestamp, &createdAt, &updatedAt, &createdBy); err != nil {
			return nil, fmt.Errorf("store: scan sop: %w", err)
		}

		if err := json.Unmarshal([]byte(steps), &sop.Steps); err != nil {
			return nil, fmt.Errorf("store: unmarshal steps for %s: %w", sop.ID, err)
		}
		if imgPath.Valid {
			sop.Image = &Image{
				Filename:    imgFilename.String,
				Path:        imgPath.String,
				ContentType: imgContentType.String,
				Size:        imgSize.Int64,
			}
		}
		sop.FromExtension = fromExt == 1
		sop.CreatedAt = time.UnixMilli(createdAt).UTC()
		sop.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		sop.CreatedBy = createdBy.String
		sops = append(sops, sop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}
	return sops, nil
}

// IsNotFound reports whether err means an unknown document id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
