package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sopify/sopify/export"
	"github.com/sopify/sopify/store"
)

// handleExportMarkdown renders an SOP as a downloadable markdown file.
func (s *Service) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	sop, err := s.store.GetSOP(r.Context(), chi.URLParam(r, "id"))
	if store.IsNotFound(err) {
		writeNotFound(w, "SOP not found")
		return
	}
	if err != nil {
		writeStoreError(w, "Failed to export SOP", err)
		return
	}

	out, err := s.renderer.Markdown(sop)
	if err != nil {
		writeStoreError(w, "Failed to export SOP", err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sop.ID+".md"))
	w.Write(out)
}

// handleExportPDF renders an SOP's step screenshots as a PDF, one page per
// screenshot.
func (s *Service) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	sop, err := s.store.GetSOP(r.Context(), chi.URLParam(r, "id"))
	if store.IsNotFound(err) {
		writeNotFound(w, "SOP not found")
		return
	}
	if err != nil {
		writeStoreError(w, "Failed to export SOP", err)
		return
	}

	out, err := s.renderer.PDF(sop)
	if errors.Is(err, export.ErrNoScreenshots) {
		writeValidation(w, "SOP has no screenshots to export")
		return
	}
	if err != nil {
		s.logger.Error("api: pdf export", "sop", sop.ID, "error", err)
		writeStoreError(w, "Failed to export SOP", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sop.ID+".pdf"))
	w.Write(out)
}
