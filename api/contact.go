package api

import (
	"encoding/json"
	"net/http"
)

// handleAddContact stores a contact form submission. All three fields are
// required.
func (s *Service) handleAddContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Email  string `json:"email"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if req.Name == "" || req.Email == "" || req.Detail == "" {
		writeErr(w, http.StatusBadRequest, "All fields are required")
		return
	}

	c, err := s.store.CreateContact(r.Context(), s.clean(req.Name), req.Email, s.clean(req.Detail))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "Failed to save contact")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Service) handleListContacts(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListContacts(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "Failed to retrieve contacts")
		return
	}
	writeJSON(w, http.StatusOK, list)
}
