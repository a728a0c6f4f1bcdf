// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New builds the process logger. When reportErrors is true, error-level
// records are also forwarded to Sentry.
func New(reportErrors bool) *slog.Logger {
	var handler slog.Handler = tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.TimeOnly,
	})
	if reportErrors {
		handler = NewSentryHandler(handler)
	}
	return slog.New(handler)
}
