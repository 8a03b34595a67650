package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestLinkLoggerScopesFields(t *testing.T) {
	base, logs := newObservedLogger()
	ll := NewLinkLogger(base, "/dev/ttyACM0", "abc-123")

	ll.LogConnection("open", true, nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/dev/ttyACM0", fields["port"])
	assert.Equal(t, "abc-123", fields["session_id"])
	assert.Equal(t, "open", fields["action"])
	assert.Equal(t, true, fields["success"])
}

func TestLinkLoggerConnectionLevels(t *testing.T) {
	base, logs := newObservedLogger()
	ll := NewLinkLogger(base, "COM7", "s1")

	ll.LogConnection("open", true, nil)
	ll.LogConnection("drop", false, errors.New("input/output error"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Contains(t, entries[1].ContextMap(), "error")
}

func TestLinkLoggerFrameLevels(t *testing.T) {
	base, logs := newObservedLogger()
	ll := NewLinkLogger(base, "COM7", "s1")

	ll.LogFrame(0x30, 4, nil)
	ll.LogFrame(0x30, 4, errors.New("write failed"))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "0x30", entries[0].ContextMap()["msg_type"])
	assert.Equal(t, int64(4), entries[0].ContextMap()["frame_size"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Contains(t, entries[1].ContextMap(), "error")
}

func TestServiceLoggerAPIRequestLevels(t *testing.T) {
	base, logs := newObservedLogger()
	sl := NewServiceLogger(base, "monitor")

	sl.LogAPIRequest("GET", "/healthz", "curl", "127.0.0.1", 200, time.Millisecond)
	sl.LogAPIRequest("GET", "/missing", "curl", "127.0.0.1", 404, time.Millisecond)
	sl.LogAPIRequest("GET", "/healthz", "curl", "127.0.0.1", 500, time.Millisecond)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}
