// Command sopify runs the SOPify backend: SOP storage, feedback, contact,
// user auth, export, and the optional MCP tool surface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/sopify/sopify/api"
	"github.com/sopify/sopify/dbopen"
	"github.com/sopify/sopify/observability"
	"github.com/sopify/sopify/shield"
	"github.com/sopify/sopify/store"
)

func main() {
	// Local development convenience; the file is optional.
	godotenv.Load()

	logger := observability.NewLogger(os.Stdout, env("LOG_LEVEL", "info"))

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	port := env("PORT", "8080")
	dbPath := env("SOPIFY_DB", "db/sopify.db")
	uploadsDir := env("UPLOADS_DIR", "uploads")
	mcpTransport := env("MCP_TRANSPORT", "")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll())
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st, err := store.New(db)
	if err != nil {
		logger.Error("init store", "error", err)
		os.Exit(1)
	}

	events, err := observability.NewEventLogger(db)
	if err != nil {
		logger.Error("init event log", "error", err)
		os.Exit(1)
	}

	svc, err := api.New(api.Config{
		Store:      st,
		Secret:     []byte(secret),
		UploadsDir: uploadsDir,
		Logger:     logger,
		Events:     events,
	})
	if err != nil {
		logger.Error("init api", "error", err)
		os.Exit(1)
	}

	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "sopify",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("mcp server", "error", err)
			}
		}()
	}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}
	r.Mount("/", svc.Routes())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Daily event-log retention sweep.
	g.Go(func() error {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := events.Cleanup(gctx, 90); err != nil {
					logger.Warn("event log cleanup", "error", err)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
