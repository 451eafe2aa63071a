// Package logger provides the context-carried structured logger used across
// PenchY's server, client and CLI processes, built on
// github.com/charmbracelet/log.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel is PenchY's own level enum, decoupled from charmlog's so config
// files and CLI flags never need to import the logging backend.
type LogLevel string

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
)

// ToCharmlogLevel converts to the charmlog level it configures the backend
// with. Unknown levels default to InfoLevel.
func (l LogLevel) ToCharmlogLevel() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return charmlog.Level(1000)
	default:
		return charmlog.InfoLevel
	}
}

// Config controls how NewLogger builds a Logger.
type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

// DefaultConfig is what a non-test process gets absent explicit
// configuration: human-readable, info level, to stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stdout,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// TestConfig silences logging entirely, for use in package tests that
// don't want to assert on log output.
func TestConfig() *Config {
	return &Config{
		Level:      DisabledLevel,
		Output:     io.Discard,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// IsTestEnvironment reports whether the process is running under `go test`.
func IsTestEnvironment() bool {
	for _, arg := range os.Args {
		if strings.HasSuffix(arg, ".test") || strings.Contains(arg, "/_test/") {
			return true
		}
	}
	return strings.HasSuffix(os.Args[0], ".test")
}

// Logger is the interface every PenchY component logs through.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type charmLogger struct {
	l *charmlog.Logger
}

// NewLogger builds a Logger from cfg. A nil cfg uses DefaultConfig, unless
// the process is running under `go test`, in which case it uses TestConfig
// so package tests stay quiet by default.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		if IsTestEnvironment() {
			cfg = TestConfig()
		} else {
			cfg = DefaultConfig()
		}
	}
	opts := charmlog.Options{
		Level:           cfg.Level.ToCharmlogLevel(),
		ReportCaller:    cfg.AddSource,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
	}
	if cfg.JSON {
		opts.Formatter = charmlog.JSONFormatter
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &charmLogger{l: charmlog.NewWithOptions(out, opts)}
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{l: c.l.With(keyvals...)}
}

type ctxKey string

// LoggerCtxKey is the context.Context key under which ContextWithLogger and
// FromContext store the Logger.
const LoggerCtxKey ctxKey = "penchy_logger"

// ContextWithLogger returns a child context carrying l.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, l)
}

var defaultLogger = NewLogger(nil)

// FromContext returns the Logger stored in ctx by ContextWithLogger, or a
// process-wide default logger if none is present (or the stored value is
// not a valid, non-nil Logger).
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return defaultLogger
	}
	v := ctx.Value(LoggerCtxKey)
	if v == nil {
		return defaultLogger
	}
	l, ok := v.(Logger)
	if !ok || l == nil {
		return defaultLogger
	}
	return l
}
