// Package logging builds the root zap logger shared by the pricecrawl
// commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pricecrawl/pricecrawl/internal/config"
)

// New builds the logger for a crawl run. Development mode writes colored
// console lines at debug level; production mode writes JSON at info level.
// An explicit logging.level overrides either default. Both modes log to
// stderr only, so CSV/JSON written to stdout by commands stays clean, and
// neither samples: a run emits few enough lines that dropping any would hide
// abandoned URL branches.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.Development {
		level = zap.DebugLevel
	}
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse logging.level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	zc := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		DisableCaller:    !cfg.Development,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Development {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Named("pricecrawl"), nil
}
