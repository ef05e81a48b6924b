// Package logger is the process-wide structured logger. Call Initialize
// once at startup; until then every call is a no-op.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelAlways is above ERROR so records at this level pass every filter.
// Generation seeds are logged at it so any run can be replayed.
const LevelAlways = slog.Level(12)

var (
	mu      sync.RWMutex
	logger  *slog.Logger
	closers []io.Closer
)

// Initialize replaces the process logger according to config.
func Initialize(config Config) error {
	level := parseLogLevel(config.Level)

	var handlers []slog.Handler
	var files []io.Closer

	if config.Console() {
		handlers = append(handlers, newHandler(os.Stderr, config.ConsoleFormat, level))
	}
	if config.FileEnabled {
		if config.FilePath == "" {
			return fmt.Errorf("file logging enabled without file_path")
		}
		rotator := &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.FileMaxSizeMB,
			MaxBackups: config.FileMaxBackups,
			MaxAge:     config.FileMaxAgeDays,
		}
		files = append(files, rotator)
		handlers = append(handlers, newHandler(rotator, config.FileFormat, level))
	}

	var h slog.Handler
	switch len(handlers) {
	case 0:
		h = slog.NewTextHandler(io.Discard, nil)
	case 1:
		h = handlers[0]
	default:
		h = newMultiHandler(handlers...)
	}

	install(slog.New(h), files)
	return nil
}

// SetOutput sends every record at or above level to w in format
// ("text" or "json"). Used by tools and tests that capture logs.
func SetOutput(w io.Writer, format, level string) {
	install(slog.New(newHandler(w, format, parseLogLevel(level))), nil)
}

// Close flushes and closes any log files opened by Initialize.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	var firstErr error
	for _, c := range closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	closers = nil
	return firstErr
}

func install(l *slog.Logger, files []io.Closer) {
	mu.Lock()
	old := closers
	logger, closers = l, files
	mu.Unlock()
	for _, c := range old {
		_ = c.Close()
	}
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: renameAlways}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// renameAlways prints LevelAlways as "ALWAYS" instead of "ERROR+4".
func renameAlways(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelAlways {
		a.Value = slog.StringValue("ALWAYS")
	}
	return a
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "ALWAYS":
		return LevelAlways
	default:
		return slog.LevelInfo
	}
}

func log(level slog.Level, msg string, args ...any) {
	if l := current(); l != nil {
		l.Log(context.Background(), level, msg, args...)
	}
}

func Debug(msg string, args ...any)   { log(slog.LevelDebug, msg, args...) }
func Info(msg string, args ...any)    { log(slog.LevelInfo, msg, args...) }
func Warning(msg string, args ...any) { log(slog.LevelWarn, msg, args...) }
func Error(msg string, args ...any)   { log(slog.LevelError, msg, args...) }

// Always logs msg regardless of the configured level.
func Always(msg string, args ...any) { log(LevelAlways, msg, args...) }

func Debugf(format string, args ...any)   { Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)    { Info(fmt.Sprintf(format, args...)) }
func Warningf(format string, args ...any) { Warning(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any)   { Error(fmt.Sprintf(format, args...)) }
func Alwaysf(format string, args ...any)  { Always(fmt.Sprintf(format, args...)) }

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	return h.each(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (h *multiHandler) each(fn func(slog.Handler) slog.Handler) *multiHandler {
	out := make([]slog.Handler, len(h.handlers))
	for i, s := range h.handlers {
		out[i] = fn(s)
	}
	return newMultiHandler(out...)
}
