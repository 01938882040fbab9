package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiandme-io/humanbound-engine/internal/config"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, config.LoggingConfig{Level: "info", Format: "json"})

	logger.Info("run started", "scenarios", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run started", entry["msg"])
	assert.Equal(t, float64(3), entry["scenarios"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, config.LoggingConfig{Level: "debug", Format: "text"})

	logger.Debug("probing endpoint")

	assert.Contains(t, buf.String(), "probing endpoint")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		logged  func(*slog.Logger)
		visible bool
	}{
		{"warn", func(l *slog.Logger) { l.Info("hidden") }, false},
		{"warn", func(l *slog.Logger) { l.Warn("shown") }, true},
		{"error", func(l *slog.Logger) { l.Warn("hidden") }, false},
		{"bogus", func(l *slog.Logger) { l.Info("shown") }, true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		tt.logged(NewLogger(&buf, config.LoggingConfig{Level: tt.level, Format: "json"}))
		assert.Equal(t, tt.visible, buf.Len() > 0, "level %q", tt.level)
	}
}

func TestInitTracing_DisabledReturnsProvider(t *testing.T) {
	tp, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false})

	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, ShutdownTracing(context.Background(), tp))
}

func TestShutdownTracing_NilProvider(t *testing.T) {
	assert.NoError(t, ShutdownTracing(context.Background(), nil))
}
