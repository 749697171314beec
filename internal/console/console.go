// Package console provides the injectable logger used throughout the
// bootloader core, in place of the original firmware's process-wide
// mutable USART singleton.
package console

import (
	"io"
	"log/slog"
)

// New wraps w in a text-handler slog.Logger, matching the handler setup
// bindicator's telemetry package uses for its serial/JSON sinks.
func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// Discard returns a logger that drops everything written to it. Core
// components fall back to this when constructed with a nil logger, so
// callers never need to nil-check before logging.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns log unchanged unless it is nil, in which case it
// returns Discard(). Every constructor in the core (flashdrv.New,
// bootflags.NewStore, dfu.New) runs its logger argument through this.
func OrDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return Discard()
	}
	return log
}
