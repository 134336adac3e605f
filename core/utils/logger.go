package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Logger struct {
	slog *slog.Logger
}

type LoggerOptions struct {
	Level  string
	Format string
	Output io.Writer
}

func NewLogger() *Logger {
	return NewLoggerWith(LoggerOptions{})
}

// NewLoggerWith builds a logger writing text (default) or json records.
func NewLoggerWith(opts LoggerOptions) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	hopts := &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLevel(opts.Level),
	}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}
	return &Logger{slog: slog.New(handler)}
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Debugf(format string, v ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Debug(fmt.Sprintf(format, v...))
}

func (l *Logger) Printf(format string, v ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Info(fmt.Sprintf(format, v...))
}

func (l *Logger) Println(v ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Info(fmt.Sprint(v...))
}

func (l *Logger) Warnf(format string, v ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Warn(fmt.Sprintf(format, v...))
}

func (l *Logger) Errorf(format string, v ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Error(fmt.Sprintf(format, v...))
}

func (l *Logger) Fatalf(format string, v ...any) {
	if l == nil || l.slog == nil {
		os.Exit(1)
	}
	l.slog.Error(fmt.Sprintf("FATAL: "+format, v...))
	os.Exit(1)
}

// With returns a child logger that attaches the given key/value pairs to every record.
func (l *Logger) With(args ...any) *Logger {
	if l == nil || l.slog == nil {
		return l
	}
	return &Logger{slog: l.slog.With(args...)}
}
