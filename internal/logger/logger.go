// =============================================================================
// VAT Checker - Logger
// =============================================================================
//
// This package builds the zap logger used by every pipeline stage. Stages
// never reach for a global: the logger is built once by the CLI and handed
// down explicitly.
//
// FORMATS:
//   - console (default): human-readable, coloured level
//   - json:              structured output for log collectors
//
// =============================================================================

package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds configuration for the logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string

	// JSON switches to the production JSON encoder.
	JSON bool

	// Color enables coloured levels on the console encoder.
	Color bool
}

// ParseLevel maps a level name onto a zap level. Unknown names fall back to info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger from the configuration.
func New(cfg Config) (*zap.Logger, error) {
	level := ParseLevel(cfg.Level)

	var zapConfig zap.Config
	if cfg.JSON {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.MessageKey = "message"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.InitialFields = map[string]interface{}{
			"service": "vatcheck",
		}
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		if cfg.Color {
			zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.DisableStacktrace = level > zapcore.DebugLevel
	// Report output goes to stdout; logs stay on stderr.
	zapConfig.OutputPaths = []string{"stderr"}

	return zapConfig.Build()
}

// LevelFromEnv returns LOG_LEVEL when set, otherwise fallback.
func LevelFromEnv(fallback string) string {
	if value := os.Getenv("LOG_LEVEL"); value != "" {
		return value
	}
	return fallback
}
