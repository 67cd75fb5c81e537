package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/reigh-app/reigh-api/internal/config"
	"github.com/reigh-app/reigh-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name   string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"Warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := logger.ParseLevel(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestNewWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New("warn", &buf)

	l.Info("dropped")
	l.Warn("kept", "task_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "abc", entry["task_id"])
	assert.NotContains(t, buf.String(), "dropped")
}

func TestSetupInstallsDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	l, err := logger.Setup(config.ServerConfig{Port: 8080, LogLevel: "debug"})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Same(t, l, slog.Default())
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))
}

func TestContextLogger(t *testing.T) {
	fallback, _ := logger.NewTestLogger(t)
	scoped, buf := logger.NewTestLogger(t)

	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))

	ctx := logger.WithLogger(context.Background(), scoped.With("trace_id", "t-1"))
	logger.FromContext(ctx).Info("hello")

	entries := buf.EntriesWithMessage("hello")
	require.Len(t, entries, 1)
	assert.Equal(t, "t-1", entries[0]["trace_id"])
}
