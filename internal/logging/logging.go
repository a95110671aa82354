// Package logging provides structured logging with zap.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.Logger

// Config holds logging configuration.
type Config struct {
	Level   string // debug, info, warn, error
	Format  string // console, json
	LogFile string // optional additional sink next to stderr
}

// Init initializes the global logger. Records go to stderr; when LogFile is
// set the same records are appended to that file as well.
func Init(cfg Config) error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var config zap.Config
	switch cfg.Format {
	case "json":
		config = zap.NewProductionConfig()
	case "", "console":
		config = zap.NewDevelopmentConfig()
		config.DisableStacktrace = true
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	if cfg.LogFile != "" {
		config.OutputPaths = append(config.OutputPaths, cfg.LogFile)
	}

	logger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

// InitDefault initializes with default console settings.
func InitDefault() {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	logger, _ := cfg.Build(zap.AddCallerSkip(1))
	globalLogger = logger
}

// Sync flushes any buffered log entries.
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// L returns the global logger.
func L() *zap.Logger {
	if globalLogger == nil {
		InitDefault()
	}
	return globalLogger
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

// Info logs an info message.
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// Field helpers for common fields.
func String(key, val string) zap.Field {
	return zap.String(key, val)
}

func Int(key string, val int) zap.Field {
	return zap.Int(key, val)
}

func Err(err error) zap.Field {
	return zap.Error(err)
}

func Duration(key string, val time.Duration) zap.Field {
	return zap.Duration(key, val)
}
