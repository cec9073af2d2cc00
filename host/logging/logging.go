// Package logging builds the zap logger used by the host tools.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"microi2c/host/config"
)

// New creates a logger writing to the configured output in console or
// JSON encoding. Unknown levels fall back to info.
func New(cfg config.LoggingConfig, version string) *zap.Logger {
	output := zapcore.Lock(os.Stderr)
	if strings.ToLower(cfg.Output) == "stdout" {
		output = zapcore.Lock(os.Stdout)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.ToLower(cfg.Format) == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, output, ParseLevel(cfg.Level))
	return zap.New(core).With(
		zap.String("service", "softi2c-host"),
		zap.String("version", version),
	)
}

// ParseLevel converts debug, info, warn or error to a zap level.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
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
