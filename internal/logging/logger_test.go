package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pricecrawl/pricecrawl/internal/config"
)

func TestNew_ModeDefaults(t *testing.T) {
	t.Parallel()

	dev, err := New(config.LoggingConfig{Development: true})
	require.NoError(t, err)
	require.True(t, dev.Core().Enabled(zap.DebugLevel))

	prod, err := New(config.LoggingConfig{})
	require.NoError(t, err)
	require.False(t, prod.Core().Enabled(zap.DebugLevel))
	require.True(t, prod.Core().Enabled(zap.InfoLevel))
}

func TestNew_ExplicitLevelOverridesMode(t *testing.T) {
	t.Parallel()

	logger, err := New(config.LoggingConfig{Development: true, Level: "warn"})
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zap.InfoLevel))
	require.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestNew_InvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := New(config.LoggingConfig{Level: "shout"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "logging.level")
}

func TestNew_NamesTheLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(config.LoggingConfig{})
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	logger = logger.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))
	logger.Info("run started")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "pricecrawl", entries[0].LoggerName)
}
