package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const lineTimeFormat = "2006-01-02 15:04:05"

// LineLogHandler implements slog.Handler and writes classic line-oriented log
// records of the form `[timestamp] LEVEL: message key=value ...`.
// It is used for the daemon log file, where structured text handlers would
// break tail/grep workflows that expect one plain line per event.
type LineLogHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewLineLogHandler creates a LineLogHandler writing to w at the given minimum level.
func NewLineLogHandler(w io.Writer, level slog.Leveler) *LineLogHandler {
	return &LineLogHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
	}
}

// Enabled implements slog.Handler
func (h *LineLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler
func (h *LineLogHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(r.Time.Format(lineTimeFormat))
	sb.WriteString("] ")
	sb.WriteString(levelName(r.Level))
	sb.WriteString(": ")
	sb.WriteString(r.Message)

	// stored attrs were qualified when added, record attrs get the open groups
	for _, attr := range h.attrs {
		writeAttr(&sb, nil, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		writeAttr(&sb, h.groups, attr)
		return true
	})
	sb.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

// WithAttrs implements slog.Handler
func (h *LineLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	qualified := append([]slog.Attr{}, h.attrs...)
	for _, attr := range attrs {
		if len(h.groups) > 0 {
			attr.Key = strings.Join(h.groups, ".") + "." + attr.Key
		}
		qualified = append(qualified, attr)
	}
	h2.attrs = qualified
	return &h2
}

// WithGroup implements slog.Handler
func (h *LineLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string{}, h.groups...), name)
	return &h2
}

func writeAttr(sb *strings.Builder, groups []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	sb.WriteString(" ")
	sb.WriteString(key)
	sb.WriteString("=")
	sb.WriteString(fmt.Sprintf("%v", attr.Value.Resolve().Any()))
}

// levelName maps slog levels to the classic syslog-ish names used in the log file.
func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARNING"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
