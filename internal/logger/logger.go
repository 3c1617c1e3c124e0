// Package logger provides a zap-backed logging facility for the application.
// The configuration compiler itself never logs; the command layer, the app
// lifecycle, and the HTTP front-ends do.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.SugaredLogger
	once sync.Once
)

// Initialize sets up the global logger. The log level is taken from the
// TILECACHED_LOG_LEVEL environment variable and defaults to info.
func Initialize() {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(levelFromEnv())
		cfg.OutputPaths = []string{"stderr"}

		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			// A broken logging config should not take the process down
			// before it has a chance to report anything.
			l = zap.NewNop()
		}
		log = l.Sugar()
	})
}

func levelFromEnv() zapcore.Level {
	switch strings.ToLower(os.Getenv("TILECACHED_LOG_LEVEL")) {
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

func ensure() *zap.SugaredLogger {
	if log == nil {
		Initialize()
	}
	return log
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { ensure().Debugf(format, args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { ensure().Infof(format, args...) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { ensure().Warnf(format, args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { ensure().Errorf(format, args...) }

// Info logs a message at info level.
func Info(msg string) { ensure().Info(msg) }

// Error logs a message at error level.
func Error(msg string) { ensure().Error(msg) }

// Sync flushes any buffered log entries.
func Sync() {
	if log != nil {
		_ = log.Desugar().Sync()
	}
}
