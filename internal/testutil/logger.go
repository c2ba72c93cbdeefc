package testutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/koopa0/fact-tools/internal/log"
)

// Logger returns a silent logger for tests.
func Logger(t *testing.T) log.Logger {
	t.Helper()
	return log.NewNop()
}

// CapturingLogger returns a debug-level logger and the buffer it writes to,
// for tests that assert on log output.
func CapturingLogger(t *testing.T) (log.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return log.NewWithWriter(&buf, log.Config{Level: slog.LevelDebug}), &buf
}
