package httpguard

import (
	"log/slog"

	"github.com/haldane/httpguard/internal/htlog"
)

// SetLogger installs a custom slog.Logger used by the client and its store
// and wrapper adapters. If not called, the default slog logger is used.
func SetLogger(l *slog.Logger) { htlog.Set(l) }

// GetLogger returns the configured logger, defaulting to slog.Default().
func GetLogger() *slog.Logger { return htlog.Get() }
