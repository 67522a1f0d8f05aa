// Package api exposes the SOPify HTTP surface: SOP CRUD (direct upload and
// recorder ingest), feedback, contact, user signup/login, and export routes.
// Every handler performs a single document-store operation and replies with
// a JSON envelope; store errors are converted locally and never escape to a
// generic handler.
package api

import (
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/sopify/sopify/auth"
	"github.com/sopify/sopify/export"
	"github.com/sopify/sopify/guard"
	"github.com/sopify/sopify/idgen"
	"github.com/sopify/sopify/observability"
	"github.com/sopify/sopify/store"
)

// Config holds the settings needed to create a Service.
type Config struct {
	Store      *store.Store
	Secret     []byte // JWT HS256 signing secret
	UploadsDir string // where multipart image files are written
	Logger     *slog.Logger
	Events     *observability.EventLogger // optional
}

// Service carries the shared dependencies of all route handlers.
type Service struct {
	store      *store.Store
	secret     []byte
	uploadsDir string
	logger     *slog.Logger
	events     *observability.EventLogger
	sanitize   *bluemonday.Policy
	renderer   *export.Renderer
	newFileID  idgen.Generator
}

// New validates the configuration and creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("api: Store is required")
	}
	if err := guard.ValidateSecret(cfg.Secret); err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	if cfg.UploadsDir == "" {
		cfg.UploadsDir = "uploads"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		store:      cfg.Store,
		secret:     cfg.Secret,
		uploadsDir: cfg.UploadsDir,
		logger:     cfg.Logger,
		events:     cfg.Events,
		sanitize:   bluemonday.StrictPolicy(),
		renderer:   export.NewRenderer(),
		newFileID:  idgen.NanoID(16),
	}, nil
}

// Routes builds the chi router for the whole API surface. The caller mounts
// it at the root and wraps it with the shield middleware stack.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.Middleware(s.secret))

	r.Route("/sops", func(r chi.Router) {
		r.Post("/add", s.handleAddSOP)
		r.Post("/add-from-extension", s.handleAddSOPFromExtension)
		r.Get("/getall", s.handleListSOPs)
		r.Get("/getbyuser/{userId}", s.handleListSOPsByUser)
		r.Get("/getbyid/{id}", s.handleGetSOP)
		r.Get("/image/{id}", s.handleSOPImage)
		r.Get("/export/{id}.md", s.handleExportMarkdown)
		r.Get("/export/{id}.pdf", s.handleExportPDF)
		r.Put("/update/{id}", s.handleUpdateSOP)
		r.Delete("/delete/{id}", s.handleDeleteSOP)
	})

	r.Route("/feedback", func(r chi.Router) {
		r.With(auth.RequireAuth).Post("/", s.handleAddFeedback)
		r.Get("/getall", s.handleListFeedback)
	})

	r.Route("/contact", func(r chi.Router) {
		r.Post("/", s.handleAddContact)
		r.Get("/", s.handleListContacts)
	})

	r.Route("/user", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
	})

	r.Get("/healthz", s.handleHealthz)

	return r
}

// clean strips any markup from a page-derived string. Recorder payloads
// carry text lifted straight out of arbitrary pages.
func (s *Service) clean(v string) string {
	return s.sanitize.Sanitize(v)
}
