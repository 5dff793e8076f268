package main

import (
	"io"
	"log/slog"
)

// logger is shared by main and handed to every package. It is
// slog.Default() until initLogger runs.
var logger = slog.Default()

// initLogger points logger, and the slog default, at a text handler on w.
// Debug also turns on source locations.
func initLogger(w io.Writer, debug bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	logger = slog.New(slog.NewTextHandler(w, opts))
	slog.SetDefault(logger)
}
