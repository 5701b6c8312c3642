package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "orderdesk", func(context.Context) string { return "abc123" })

	log.Info(context.Background(), "order loaded", "order_id", "o1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "order loaded", line["msg"])
	assert.Equal(t, "orderdesk", line["service"])
	assert.Equal(t, "o1", line["order_id"])
	assert.Equal(t, "abc123", line["trace_id"])
	assert.Equal(t, "info", line["level"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "orderdesk", nil)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
	assert.NotContains(t, lines[0], "trace_id")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNilAndNopLoggers(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Info(context.Background(), "x") })
	assert.NotPanics(t, func() { Nop().Error(context.Background(), "x", "k", 1) })
}
