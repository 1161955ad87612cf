// Package observability bundles structured logging, Prometheus metrics and
// health checking for the gateway.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger with convenience methods.
type Logger struct {
	*zap.Logger
}

// GlobalLogger is the default logger instance. Exported for testing.
var GlobalLogger *Logger

// InitLogger initializes the global logger for the given format ("json" or
// "console") at the given level. An empty level defaults to info.
func InitLogger(format, level string) (*Logger, error) {
	var config zap.Config

	switch format {
	case "console":
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json", "":
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be json or console)", format)
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	zapLogger, err := config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	logger := &Logger{Logger: zapLogger}
	GlobalLogger = logger

	return logger, nil
}

// GetLogger returns the global logger instance.
// Panics if InitLogger has not been called.
func GetLogger() *Logger {
	if GlobalLogger == nil {
		panic("logger not initialized - call InitLogger first")
	}
	return GlobalLogger
}

// WithFields creates a new logger with additional fields.
func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.With(fields...)}
}

// WithError adds an error field to the logger.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With(zap.Error(err))}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With(zap.String("component", component))}
}

// WithParty adds the OCPI party identity to the logger.
func (l *Logger) WithParty(countryCode, partyID string) *Logger {
	return &Logger{Logger: l.With(
		zap.String("country_code", countryCode),
		zap.String("party_id", partyID),
	)}
}

// Sync flushes any buffered log entries. Should be called before shutdown.
func (l *Logger) Sync() error {
	if err := l.Logger.Sync(); err != nil {
		return fmt.Errorf("failed to sync logger: %w", err)
	}
	return nil
}

// LogRequest logs an HTTP request.
func (l *Logger) LogRequest(method, path string, statusCode int, durationMS float64) {
	l.Info("http request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", statusCode),
		zap.Float64("duration_ms", durationMS),
	)
}

// LogStoreConflict logs a rejected store mutation.
func (l *Logger) LogStoreConflict(kind, entityID string, err error) {
	l.Debug("store mutation rejected",
		zap.String("kind", kind),
		zap.String("entity_id", entityID),
		zap.Error(err),
	)
}

// LogRedisOperation logs a Redis operation.
func (l *Logger) LogRedisOperation(operation, key string, err error) {
	if err != nil {
		l.Error("redis operation failed",
			zap.String("operation", operation),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	l.Debug("redis operation completed",
		zap.String("operation", operation),
		zap.String("key", key),
	)
}
