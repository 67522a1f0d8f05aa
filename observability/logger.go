// Package observability provides the slog setup and the business event log
// shared by the API server and the recorder.
package observability

import (
	"io"
	"log/slog"
)

// NewLogger builds a JSON slog logger at the named level ("debug", "info",
// "warn", "error"; anything else means info) and installs it as the default.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
