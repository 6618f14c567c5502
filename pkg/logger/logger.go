// Package logger is the shared structured logger. Every record carries a
// "component" attribute so the managed/native/front-end streams remain
// distinguishable when both debuggers are attached.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/tidwall/pretty"
	"golang.org/x/term"
)

var (
	mu      sync.RWMutex
	base    = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	divider = strings.Repeat("=", 20)
)

// Setup replaces the process-wide logger. Output that is a terminal gets
// the text handler, anything else (pipes, files, IDE output channels)
// gets JSON lines.
func Setup(w io.Writer, level string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	mu.Lock()
	base = slog.New(h)
	mu.Unlock()
	slog.SetDefault(base)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// For returns a logger tagged with the given component name.
func For(component string) *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &Logger{Logger: base.With("component", component)}
}

// Logger adds the divider and config dump helpers on top of slog.
type Logger struct {
	*slog.Logger
}

// Divider logs a section banner.
func (l *Logger) Divider(title string) {
	if title == "" {
		l.Info(strings.Repeat("=", 50))
		return
	}
	l.Info(fmt.Sprintf("%s %s %s", divider, title, divider))
}

// Config logs a labelled, indented JSON dump of v at debug level.
func (l *Logger) Config(label string, v any) {
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		l.Debug(label, "value", fmt.Sprintf("%v", v))
		return
	}
	l.Debug(label, "config", string(pretty.PrettyOptions(raw, &pretty.Options{Indent: "    ", SortKeys: true})))
}

// With returns a Logger carrying the extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
