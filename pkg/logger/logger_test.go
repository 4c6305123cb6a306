package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e), line)
		entries = append(entries, e)
	}
	return entries
}

func TestLogger_LevelFilteringAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo}).With(Component("test"))

	log.Debug("hidden")
	log.Info("synced", UserID("u1"), Count("tracks", 3))
	log.Error("failed", Err(errors.New("boom")))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)

	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "synced", entries[0].Message)
	assert.Equal(t, "test", entries[0].Fields["component"])
	assert.Equal(t, "u1", entries[0].Fields["user_id"])
	assert.Equal(t, float64(3), entries[0].Fields["tracks"])

	assert.Equal(t, "ERROR", entries[1].Level)
	assert.Equal(t, "boom", entries[1].Fields["error"])
}

func TestLogger_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Options{Output: &buf, Level: LevelDebug})
	_ = parent.With(String("child", "yes"))

	parent.Info("plain")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Fields, "child")
}

func TestLogger_Context(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug}).WithRequestID("req-1")

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Warn("slow")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].Fields[RequestIDKey])

	assert.NotNil(t, FromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestNop_WritesNothing(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("ignored", Err(errors.New("x")))
	})
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo, Format: ParseFormat("TEXT")})

	log.Info("served", Count("tracks", 2), UserID("u1"))

	line := buf.String()
	assert.Contains(t, line, " INFO served tracks=2 user_id=u1")
	assert.True(t, strings.HasSuffix(line, "\n"))
}
