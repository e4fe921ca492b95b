package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Warn("careful")
	entry := decode(t, &buf)

	assert.Equal(t, "careful", entry["message"])
	assert.Equal(t, "warning", entry["level"])
	assert.Contains(t, entry, "timestamp")
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("error", &buf)

	log.Info("ignored")
	assert.Zero(t, buf.Len())
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", &buf)

	log.WithModule("router").
		WithError(errors.New("boom")).
		WithFields(map[string]any{"user_id": 7}).
		Infof("handled %d", 1)
	entry := decode(t, &buf)

	assert.Equal(t, "router", entry["module"])
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 7, entry["user_id"])
	assert.Equal(t, "handled 1", entry["message"])
}

func TestLoggerAddsRequestIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	log.InfoContext(ctx, "hello")
	entry := decode(t, &buf)

	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}
