package utils

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SetupLogger builds the sugared logger shared by every component. An unknown
// level falls back to info.
func SetupLogger(level string) *zap.SugaredLogger {
	config := zap.NewDevelopmentConfig()
	parsedLevel, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsedLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(parsedLevel)
	logger := zap.Must(config.Build())

	return logger.Sugar()
}
