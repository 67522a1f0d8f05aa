package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/sopify/sopify/auth"
	"github.com/sopify/sopify/guard"
	"github.com/sopify/sopify/observability"
	"github.com/sopify/sopify/store"
)

// maxMultipartMemory bounds the in-memory portion of multipart parsing;
// larger file parts spill to disk.
const maxMultipartMemory = 32 << 20

// handleAddSOP creates an SOP from a multipart form with an optional single
// image file.
func (s *Service) handleAddSOP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeValidation(w, "Invalid multipart form")
		return
	}

	title := s.clean(r.FormValue("title"))
	description := s.clean(r.FormValue("description"))
	if title == "" || description == "" {
		writeValidation(w, "Missing required fields")
		return
	}

	var image *store.Image
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		image, err = s.saveImage(file, header)
		if err != nil {
			s.logger.Error("api: save upload", "error", err)
			writeStoreError(w, "Failed to create SOP", err)
			return
		}
	}

	sop := &store.SOP{
		Title:       title,
		Description: description,
		Image:       image,
		CreatedBy:   r.FormValue("userId"),
	}
	if claims := auth.GetClaims(r.Context()); claims != nil {
		sop.CreatedBy = claims.UserID
	}

	if err := s.store.CreateSOP(r.Context(), sop); err != nil {
		writeStoreError(w, "Failed to create SOP", err)
		return
	}

	s.recordEvent(r, "sop_created", "sop", sop.ID, sop.CreatedBy)
	writeData(w, "SOP created successfully", sop)
}

// extensionSOPRequest is the JSON payload posted by the recorder when a
// capture session is saved.
type extensionSOPRequest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Steps       []store.Step `json:"steps"`
	URL         string       `json:"url"`
	Timestamp   int64        `json:"timestamp"`
	CreatedBy   string       `json:"createdBy"`
}

// handleAddSOPFromExtension creates an SOP from the recorder's JSON payload.
// The owner is resolved from the bearer token when one is present, falling
// back to the body's createdBy.
func (s *Service) handleAddSOPFromExtension(w http.ResponseWriter, r *http.Request) {
	var req extensionSOPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "Invalid request body")
		return
	}
	if req.Title == "" || req.Description == "" || req.Steps == nil {
		writeValidation(w, "Missing required fields")
		return
	}

	createdBy := req.CreatedBy
	if claims := auth.GetClaims(r.Context()); claims != nil {
		createdBy = claims.UserID
	}

	steps := make([]store.Step, len(req.Steps))
	for i, st := range req.Steps {
		st.Title = s.clean(st.Title)
		st.Description = s.clean(st.Description)
		steps[i] = st
	}

	sop := &store.SOP{
		Title:         s.clean(req.Title),
		Description:   s.clean(req.Description),
		Steps:         steps,
		FromExtension: true,
		URL:           req.URL,
		Timestamp:     req.Timestamp,
		CreatedBy:     createdBy,
	}

	if err := s.store.CreateSOP(r.Context(), sop); err != nil {
		var ve *store.ValidationError
		if errors.As(err, &ve) {
			writeValidation(w, "Missing required fields")
			return
		}
		writeStoreError(w, "Failed to create SOP", err)
		return
	}

	s.recordEvent(r, "sop_created", "sop", sop.ID, createdBy)
	writeData(w, "SOP created successfully from extension", sop)
}

func (s *Service) handleListSOPs(w http.ResponseWriter, r *http.Request) {
	sops, err := s.store.ListSOPs(r.Context())
	if err != nil {
		writeStoreError(w, "Failed to retrieve SOPs", err)
		return
	}
	writeList(w, sops, len(sops))
}

func (s *Service) handleListSOPsByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	extensionOnly := r.URL.Query().Get("source") == "extension"

	sops, err := s.store.ListSOPsByUser(r.Context(), userID, extensionOnly)
	if err != nil {
		writeStoreError(w, "Failed to retrieve SOPs for user", err)
		return
	}
	writeList(w, sops, len(sops))
}

func (s *Service) handleGetSOP(w http.ResponseWriter, r *http.Request) {
	sop, err := s.store.GetSOP(r.Context(), chi.URLParam(r, "id"))
	if store.IsNotFound(err) {
		writeNotFound(w, "SOP not found")
		return
	}
	if err != nil {
		writeStoreError(w, "Failed to retrieve SOP", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: sop})
}

// handleSOPImage streams the raw image bytes of an SOP's illustration.
func (s *Service) handleSOPImage(w http.ResponseWriter, r *http.Request) {
	sop, err := s.store.GetSOP(r.Context(), chi.URLParam(r, "id"))
	if store.IsNotFound(err) || (err == nil && (sop.Image == nil || sop.Image.Path == "")) {
		writeNotFound(w, "Image not found")
		return
	}
	if err != nil {
		writeStoreError(w, "Failed to retrieve image", err)
		return
	}

	path, err := guard.SafePath(s.uploadsDir, sop.Image.Filename)
	if err != nil {
		writeNotFound(w, "Image not found")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeNotFound(w, "Image not found")
		return
	}
	defer f.Close()

	if sop.Image.ContentType != "" {
		w.Header().Set("Content-Type", sop.Image.ContentType)
	}
	io.Copy(w, f)
}

// handleUpdateSOP replaces title/description (and optionally the image and
// the whole steps array) of an existing SOP.
func (s *Service) handleUpdateSOP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeValidation(w, "Invalid multipart form")
		return
	}

	upd := store.SOPUpdate{
		Title:       s.clean(r.FormValue("title")),
		Description: s.clean(r.FormValue("description")),
	}
	if upd.Title == "" || upd.Description == "" {
		writeValidation(w, "Missing required fields")
		return
	}

	if raw := r.FormValue("steps"); raw != "" {
		var steps []store.Step
		if err := json.Unmarshal([]byte(raw), &steps); err != nil {
			writeValidation(w, "Invalid steps payload")
			return
		}
		upd.Steps = steps
	}

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		image, err := s.saveImage(file, header)
		if err != nil {
			s.logger.Error("api: save upload", "error", err)
			writeStoreError(w, "Failed to update SOP", err)
			return
		}
		upd.Image = image
	}

	sop, err := s.store.UpdateSOP(r.Context(), chi.URLParam(r, "id"), upd)
	if store.IsNotFound(err) {
		writeNotFound(w, "SOP not found")
		return
	}
	if err != nil {
		writeStoreError(w, "Failed to update SOP", err)
		return
	}
	writeData(w, "SOP updated successfully", sop)
}

// handleDeleteSOP removes the document, then best-effort unlinks the stored
// image file. Unlink failures are logged and swallowed: the delete still
// reports success.
func (s *Service) handleDeleteSOP(w http.ResponseWriter, r *http.Request) {
	sop, err := s.store.DeleteSOP(r.Context(), chi.URLParam(r, "id"))
	if store.IsNotFound(err) {
		writeNotFound(w, "SOP not found")
		return
	}
	if err != nil {
		writeStoreError(w, "Failed to delete SOP", err)
		return
	}

	if sop.Image != nil && sop.Image.Path != "" {
		if path, perr := guard.SafePath(s.uploadsDir, sop.Image.Filename); perr == nil {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				s.logger.Error("api: delete image file", "path", path, "error", rmErr)
			}
		}
	}

	s.recordEvent(r, "sop_deleted", "sop", sop.ID, sop.CreatedBy)
	writeData(w, "SOP deleted successfully", sop)
}

func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// saveImage writes an uploaded file under the uploads dir with a generated
// name and returns its metadata.
func (s *Service) saveImage(file multipart.File, header *multipart.FileHeader) (*store.Image, error) {
	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return nil, err
	}

	filename := s.newFileID() + filepath.Ext(header.Filename)
	path := filepath.Join(s.uploadsDir, filename)

	dst, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	return &store.Image{
		Filename:    filename,
		Path:        path,
		ContentType: header.Header.Get("Content-Type"),
		Size:        size,
	}, nil
}

func (s *Service) recordEvent(r *http.Request, eventType, entityType, entityID, userID string) {
	if s.events == nil {
		return
	}
	s.events.LogEvent(r.Context(), observability.BusinessEvent{
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Action:     eventType,
		Success:    true,
	})
}
