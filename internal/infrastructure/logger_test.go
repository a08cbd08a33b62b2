package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceindex/internal/config"
)

func lastLogEntry(t *testing.T, content []byte) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "test.log")
	cfg := config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("index computed", "method", "TPD")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	entry := lastLogEntry(t, content)
	assert.Equal(t, "index computed", entry["msg"])
	assert.Equal(t, "TPD", entry["method"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestInitializeLoggerOnlyOnce(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	first, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "console"})
	require.NoError(t, err)
	second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "console"})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, GetLogger())
}

// TestContextIDInjection tests that trace and run ids reach the JSON output
func TestContextIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug")

	ctx := WithTraceID(context.Background(), "trace-123")
	ctx = WithRunID(ctx, "run-456")
	logger.InfoContext(ctx, "with ids")

	entry := lastLogEntry(t, buf.Bytes())
	assert.Equal(t, "trace-123", entry["trace_id"])
	assert.Equal(t, "run-456", entry["run_id"])

	buf.Reset()
	logger.InfoContext(context.Background(), "without ids")
	entry = lastLogEntry(t, buf.Bytes())
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "run_id")
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    string
		debugOut bool
		infoOut  bool
		warnOut  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"WARN", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level)

			logger.Debug("d")
			assert.Equal(t, tt.debugOut, strings.Contains(buf.String(), `"msg":"d"`))
			logger.Info("i")
			assert.Equal(t, tt.infoOut, strings.Contains(buf.String(), `"msg":"i"`))
			logger.Warn("w")
			assert.Equal(t, tt.warnOut, strings.Contains(buf.String(), `"msg":"w"`))
		})
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	traceID := GetTraceID(ctx)
	assert.NotEmpty(t, traceID)

	assert.Equal(t, traceID, GetTraceID(EnsureTraceID(ctx)), "existing trace id is kept")
	assert.Empty(t, GetRunID(ctx))
	assert.Equal(t, "abc", GetRunID(WithRunID(ctx, "abc")))
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(NewLogger(&buf, "info"), "index_service")
	logger.Info("hello")

	entry := lastLogEntry(t, buf.Bytes())
	assert.Equal(t, "index_service", entry["component"])
}
