package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewTest returns a quiet logger for tests: only errors surface by default so
// parallel scanner and submitter runs don't interleave noise into test output.
// RENTSWEEP_TEST_LOG=debug|info raises the level for local debugging.
func NewTest() *slog.Logger {
	level := slog.LevelError
	switch strings.ToLower(os.Getenv("RENTSWEEP_TEST_LOG")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
