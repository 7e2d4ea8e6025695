package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFormatsAndCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewLoggerFrom(zap.New(core)).With("owner", "Ana")

	logger.Debug("hidden %d", 1)
	logger.Info("[traverse] %d owner(s) listed", 2)
	logger.Warn("calendar not aligned to %s", "2024-02")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "[traverse] 2 owner(s) listed", entries[0].Message)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, "Ana", entries[1].ContextMap()["owner"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	l := NewLogger("verbose")
	require.NotNil(t, l)
	require.True(t, l.sugar.Desugar().Core().Enabled(zapcore.InfoLevel))
	require.False(t, l.sugar.Desugar().Core().Enabled(zapcore.DebugLevel))
	l.Sync()
}
