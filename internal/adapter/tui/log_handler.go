package tui

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg carries a log record into the status line.
type logRecordMsg struct {
	Summary string
	Level   slog.Level
}

// noticeFadeMsg clears the status line notice with the given sequence
// number. A newer notice bumps the sequence, so stale fades are ignored.
type noticeFadeMsg struct{ seq int }

// noticeFadeDelay is how long a notice stays in the status line.
const noticeFadeDelay = 5 * time.Second

// LogHandler is a slog.Handler that shows records in the console's status
// line. Records arriving before SetProgram are dropped. Derived handlers
// share the delivery target, so one SetProgram call reaches all of them.
type LogHandler struct {
	level slog.Level
	send  *atomic.Pointer[func(tea.Msg)]
	attrs []slog.Attr
	group string
	omit  map[string]bool
}

// NewLogHandler creates a handler delivering records at or above level.
// Top-level attributes named in omit are left out of the summary.
func NewLogHandler(level slog.Level, omit ...string) *LogHandler {
	h := &LogHandler{
		level: level,
		send:  &atomic.Pointer[func(tea.Msg)]{},
		omit:  make(map[string]bool, len(omit)),
	}
	for _, k := range omit {
		h.omit[k] = true
	}
	return h
}

// SetProgram routes records to program. Safe to call from any goroutine.
func (h *LogHandler) SetProgram(program *tea.Program) {
	h.setSend(program.Send)
}

func (h *LogHandler) setSend(fn func(tea.Msg)) {
	h.send.Store(&fn)
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats the record as "message (key=value, ...)" and hands it to
// the program without blocking the caller.
func (h *LogHandler) Handle(_ context.Context, record slog.Record) error {
	fn := h.send.Load()
	if fn == nil {
		return nil
	}

	var parts []string
	for _, a := range h.attrs {
		parts = append(parts, a.Key+"="+a.Value.String())
	}
	record.Attrs(func(a slog.Attr) bool {
		if h.group == "" && h.omit[a.Key] {
			return true
		}
		parts = append(parts, h.key(a.Key)+"="+a.Value.String())
		return true
	})

	summary := record.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}

	// program.Send blocks until the event loop receives the message.
	go (*fn)(logRecordMsg{Summary: summary, Level: record.Level})
	return nil
}

func (h *LogHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if h.group == "" && h.omit[a.Key] {
			continue
		}
		next.attrs = append(next.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &next
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	next.group = name
	return &next
}
