// Package htlog holds the package-level logger shared by httpguard and its
// store/wrapper adapters.
package htlog

import (
	"log/slog"
	"sync"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// Set installs a custom logger to be used throughout httpguard.
// If never called, Get falls back to slog.Default().
func Set(l *slog.Logger) {
	logger = l
}

// Get returns the configured logger, defaulting to slog.Default() on first use.
func Get() *slog.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = slog.Default()
		}
	})
	return logger
}
