package logger

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRentsweep_Logger_New(t *testing.T) {
	t.Run("verbose enables debug", func(t *testing.T) {
		ctx := context.Background()
		require.True(t, New(true).Enabled(ctx, slog.LevelDebug))
		require.False(t, New(false).Enabled(ctx, slog.LevelDebug))
		require.True(t, New(false).Enabled(ctx, slog.LevelInfo))
	})

	t.Run("env var overrides the verbose flag", func(t *testing.T) {
		t.Setenv("RENTSWEEP_LOG_LEVEL", "error")
		ctx := context.Background()
		log := New(true)
		require.False(t, log.Enabled(ctx, slog.LevelWarn))
		require.True(t, log.Enabled(ctx, slog.LevelError))
	})

	t.Run("unknown env level keeps the flag's choice", func(t *testing.T) {
		t.Setenv("RENTSWEEP_LOG_LEVEL", "loud")
		require.True(t, New(true).Enabled(context.Background(), slog.LevelDebug))
	})
}

func TestRentsweep_Logger_FormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)
	ts := time.Date(2026, 8, 28, 15, 4, 5, 6_000_000, loc)
	require.Equal(t, "2026-08-28T12:04:05.006Z", formatRFC3339Millis(ts))
}

func TestRentsweep_Logger_NewTest(t *testing.T) {
	t.Run("quiet by default", func(t *testing.T) {
		ctx := context.Background()
		log := NewTest()
		require.False(t, log.Enabled(ctx, slog.LevelInfo))
		require.True(t, log.Enabled(ctx, slog.LevelError))
	})

	t.Run("env var raises verbosity", func(t *testing.T) {
		t.Setenv("RENTSWEEP_TEST_LOG", "debug")
		require.True(t, NewTest().Enabled(context.Background(), slog.LevelDebug))
	})
}
