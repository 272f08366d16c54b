package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Leveled logger shared by the collab services.
// - printf-style Debug/Info/Warn/Error/Fatal variants and Init(level)
// - With(...) returns an Entry carrying key/value attributes (session, doc, ...)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// slog has no fatal level; keep it above error so it is never filtered.
const slogLevelFatal = slog.LevelError + 4

var (
	mu     sync.RWMutex
	level  Level = LevelInfo
	lvlVar       = new(slog.LevelVar)
	base         = newSlog(os.Stdout)
	exit         = os.Exit
)

func newSlog(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvlVar,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == slogLevelFatal {
					a.Value = slog.StringValue("FATAL")
				}
			}
			return a
		},
	}))
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		level = LevelDebug
		lvlVar.Set(slog.LevelDebug)
	case "warn", "warning":
		level = LevelWarn
		lvlVar.Set(slog.LevelWarn)
	case "error":
		level = LevelError
		lvlVar.Set(slog.LevelError)
	case "fatal":
		level = LevelFatal
		lvlVar.Set(slogLevelFatal)
	default:
		level = LevelInfo
		lvlVar.Set(slog.LevelInfo)
	}
}

// SetOutput redirects all log output. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newSlog(w)
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func logf(l *slog.Logger, lvl slog.Level, format string, v ...interface{}) {
	if !l.Enabled(context.Background(), lvl) {
		return
	}
	l.Log(context.Background(), lvl, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...interface{}) { logf(current(), slog.LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logf(current(), slog.LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logf(current(), slog.LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logf(current(), slog.LevelError, format, v...) }

func Fatalf(format string, v ...interface{}) {
	current().Log(context.Background(), slogLevelFatal, fmt.Sprintf(format, v...))
	exit(1)
}

// Println kept for brief messages (maps to Info)
func Println(v ...interface{}) {
	logf(current(), slog.LevelInfo, "%s", strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

// Debug/Info/Warn/Error helpers that accept a single string
func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// Entry is a logger bound to a fixed set of attributes.
type Entry struct {
	args []any
}

// With returns an Entry that prefixes every line with the given key/value pairs.
func With(args ...any) *Entry {
	return &Entry{args: args}
}

// With extends the entry with more key/value pairs.
func (e *Entry) With(args ...any) *Entry {
	merged := make([]any, 0, len(e.args)+len(args))
	merged = append(merged, e.args...)
	merged = append(merged, args...)
	return &Entry{args: merged}
}

func (e *Entry) logger() *slog.Logger { return current().With(e.args...) }

func (e *Entry) Debugf(format string, v ...interface{}) { logf(e.logger(), slog.LevelDebug, format, v...) }
func (e *Entry) Infof(format string, v ...interface{})  { logf(e.logger(), slog.LevelInfo, format, v...) }
func (e *Entry) Warnf(format string, v ...interface{})  { logf(e.logger(), slog.LevelWarn, format, v...) }
func (e *Entry) Errorf(format string, v ...interface{}) { logf(e.logger(), slog.LevelError, format, v...) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
