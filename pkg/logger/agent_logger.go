// Package logger is the process-level logging facade. It fronts zerolog
// so main, middleware, and bootstrap share one configured sink;
// components that need richer context receive an injected
// zerolog.Logger instead.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Level aliases zerolog's severity scale.
type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
)

// Config for the process logger.
type Config struct {
	Level   Level
	Output  io.Writer
	Service string
}

var (
	mu   sync.RWMutex
	root = zerolog.New(os.Stdout).With().Timestamp().Str("service", "triage-agent").Logger()
)

// Init configures the process logger. The last call wins, so the debug
// flag can reconfigure after the initial setup.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Service == "" {
		cfg.Service = "triage-agent"
	}
	mu.Lock()
	defer mu.Unlock()
	root = zerolog.New(cfg.Output).
		Level(cfg.Level).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()
}

// Logger carries bound fields toward one emission.
type Logger struct {
	zl zerolog.Logger
}

func base() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &Logger{zl: root}
}

// WithField binds one field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithFields binds a field set.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// WithError binds the error field. A nil error binds nothing.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

func (l *Logger) Debug(msg string, args ...any) { l.zl.Debug().Msgf(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.zl.Info().Msgf(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.zl.Warn().Msgf(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.zl.Error().Msgf(msg, args...) }

// Fatal logs and exits the process.
func (l *Logger) Fatal(msg string, args ...any) { l.zl.Fatal().Msgf(msg, args...) }

// Package-level shorthands on the process logger.
func Debug(msg string, args ...any) { base().Debug(msg, args...) }
func Info(msg string, args ...any)  { base().Info(msg, args...) }
func Warn(msg string, args ...any)  { base().Warn(msg, args...) }
func Error(msg string, args ...any) { base().Error(msg, args...) }
func Fatal(msg string, args ...any) { base().Fatal(msg, args...) }

func WithField(key string, value any) *Logger  { return base().WithField(key, value) }
func WithFields(fields map[string]any) *Logger { return base().WithFields(fields) }
func WithError(err error) *Logger              { return base().WithError(err) }
