package logger

import (
	"go.uber.org/zap"
)

// New builds the process logger. format is "json" or "console".
func New(level, format, env string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	atomic, err := zap.ParseAtomicLevel(level)
	if err != nil {
		atomic = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = atomic

	cfg.InitialFields = map[string]any{
		"service":     "gamevault-api",
		"environment": env,
	}

	return cfg.Build()
}
