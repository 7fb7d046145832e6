package config

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates the application logger and flushes it on shutdown.
func NewLogger(lc fx.Lifecycle, s *Settings) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if s.LogDevelopment {
		cfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}
