package testutil

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("index computed", slog.String("method", "TPD"))
		logger.Error("index failed", slog.Int("status", 400))

		assert.Equal(t, 2, handler.Count())
		assert.True(t, handler.ContainsMessage("index computed"))
		assert.True(t, handler.ContainsAttr("method", "TPD"))
		assert.False(t, handler.ContainsAttr("method", "TDH"))
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
		assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
		AssertLogContains(t, handler, slog.LevelWarn, "warn")
	})

	t.Run("keeps attributes from With", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With("component", "index_service").WithGroup("run").Info("started", "id", "r1")

		assert.True(t, handler.ContainsAttr("component", "index_service"))
		assert.True(t, handler.ContainsAttr("run.id", "r1"))
	})

	t.Run("derived loggers share records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)
		logger.With("a", 1).Info("one")
		logger.Info("two")
		assert.Equal(t, 2, handler.Count())
		AssertNoErrors(t, handler)
	})
}

func TestMultiplicativeCSV(t *testing.T) {
	csv := MultiplicativeCSV(map[string]float64{"B": 2, "A": 1}, []float64{1, 1.5})
	lines := strings.Split(strings.TrimSpace(csv), "\n")

	assert.Len(t, lines, 5)
	assert.Equal(t, "id,month,price,quantity", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "A,1,1.0000000000,"))
	assert.True(t, strings.HasPrefix(lines[4], "B,2,3.0000000000,"))
}
