// Package logging builds the zerolog loggers used across the notifier.
//
// Logs go to stderr (stdout belongs to command output) in either the
// human console format or JSON lines, and optionally to a rotating file.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	JSON       bool // JSON lines on the console instead of the pretty format
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Out        io.Writer
}

// DefaultLogConfig returns the logging configuration used before config.toml is read.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		FilePath:   filepath.Join(home, ".config", "sisu-notifier", "logs", "notifier.log"),
		MaxSize:    50,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a logger with DefaultLogConfig.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a logger writing to every sink enabled in cfg.
// A file that cannot be opened is skipped rather than failing startup.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, consoleSink(cfg))
	}
	if cfg.File && cfg.FilePath != "" {
		if sink, err := fileSink(cfg); err == nil {
			sinks = append(sinks, sink)
		}
	}

	var w io.Writer
	switch len(sinks) {
	case 0:
		w = io.Discard
	case 1:
		w = sinks[0]
	default:
		w = zerolog.MultiLevelWriter(sinks...)
	}

	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

var levelTags = map[string]string{
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
	"fatal": "\033[35mFTL\033[0m",
}

func consoleSink(cfg LogConfig) io.Writer {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.JSON {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			name, _ := i.(string)
			if tag, ok := levelTags[name]; ok {
				return tag
			}
			return strings.ToUpper(name)
		},
	}
}

func fileSink(cfg LogConfig) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}, nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

type ctxKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or a no-op logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithComponent tags logger with a component name.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// WithRun tags logger with a run id.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// LogAPICall records an outbound HTTP call. Successful calls log at debug;
// transport errors and non-2xx answers at warn.
func LogAPICall(logger zerolog.Logger, method, endpoint string, status int, duration time.Duration, err error) {
	var ev *zerolog.Event
	switch {
	case err != nil:
		ev = logger.Warn().Err(err)
	case status < 200 || status >= 300:
		ev = logger.Warn()
	default:
		ev = logger.Debug()
	}
	ev.Str("method", method).
		Str("endpoint", endpoint).
		Int("status", status).
		Dur("duration", duration).
		Msg("SISU call")
}
