package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaultsToStderr(t *testing.T) {
	logger := NewLogger(nil)
	require.NotNil(t, logger)
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	require.Empty(t, buf.String())

	logger.Warn("first warning")
	require.Contains(t, buf.String(), "[WARN] first warning")
}

func TestLoggerFormatArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("accepted connection", "remote", "10.0.0.2:40000", "qd", 3)
	require.Contains(t, buf.String(), "[INFO] accepted connection remote=10.0.0.2:40000 qd=3")
}

func TestLoggerPrintfVariants(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Errorf("backlog full: inflight=%d ready=%d", 4, 4)
	require.Contains(t, buf.String(), "[ERROR] backlog full: inflight=4 ready=4")
}

func TestWithOpTagsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})
	closeLogger := logger.WithOp("close")

	closeLogger.Warn("queue has operations still in flight", "qd", 3)
	require.Contains(t, buf.String(), "[WARN] close: queue has operations still in flight qd=3")

	buf.Reset()
	logger.Warn("untagged message")
	require.NotContains(t, buf.String(), "close:")
}

func TestDefaultAndSetDefault(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	t.Cleanup(func() { SetDefault(NewLogger(nil)) })

	Info("global info message")
	require.Contains(t, buf.String(), "global info message")

	Debug("global debug", "k", "v")
	require.Contains(t, buf.String(), "k=v")
}
