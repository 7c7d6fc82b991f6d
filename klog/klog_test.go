package klog

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

func TestNopLoggerDiscardsEverything(t *testing.T) {
	l := NewNop()
	// None of these should panic or otherwise observably do anything; the
	// test exists so a future change to the nop implementation that makes
	// it fallible gets caught.
	l.Debug("x")
	l.Info("x", F("a", 1))
	l.Warn("x")
	l.Error("x", errors.New("boom"))
	l.Fatal("x")
}

func TestStumpyLoggerWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DefaultLevel)

	l.Info("thread created", F("tid", 3), F("entry", "worker"))

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line, "expected a log line to be written")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &decoded), "log line is not valid JSON (line=%q)", line)
	require.Equal(t, "thread created", decoded["msg"])
	require.Equal(t, float64(3), decoded["tid"])
	require.Equal(t, "worker", decoded["entry"])
}

func TestStumpyLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, logiface.LevelError)

	l.Debug("should not appear")
	l.Info("should not appear either")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing logged below configured level, got %q", buf.String())
	}

	l.Error("should appear", errors.New("boom"))
	if buf.Len() == 0 {
		t.Fatal("expected the error-level line to be written")
	}
}
