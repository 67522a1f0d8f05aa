package api

import (
	"encoding/json"
	"net/http"

	"github.com/sopify/sopify/auth"
)

// handleAddFeedback stores a feedback entry. The route requires a valid
// token; the submitter's name comes from the claims, never from the body.
func (s *Service) handleAddFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "Message is required")
		return
	}
	if req.Message == "" {
		writeErr(w, http.StatusBadRequest, "Message is required")
		return
	}

	claims := auth.GetClaims(r.Context())
	if claims == nil {
		// RequireAuth guards the route; this is unreachable in practice.
		writeErr(w, http.StatusUnauthorized, "No token, authorization denied")
		return
	}

	f, err := s.store.CreateFeedback(r.Context(), claims.Name, s.clean(req.Message))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "Failed to save feedback")
		return
	}

	s.recordEvent(r, "feedback_submitted", "feedback", f.ID, claims.UserID)
	writeJSON(w, http.StatusCreated, f)
}

// handleListFeedback returns all feedback entries as a bare array.
func (s *Service) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListFeedback(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "Failed to retrieve feedback")
		return
	}
	writeJSON(w, http.StatusOK, list)
}
