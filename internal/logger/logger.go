// Package logger provides structured logging setup for the fleet console.
package logger

import (
	"io"
	"log/slog"
	"strings"

	"github.com/Strob0t/fleetconsole/internal/config"
)

const asyncBuffer = 1024

// New creates a *slog.Logger from the given Logging config writing JSON to w.
// Extra handlers (such as the TUI status line) receive every record as well.
// Every record carries a "service" attribute. The returned Closer flushes
// the async handler when cfg.Async is set.
func New(cfg config.Logging, w io.Writer, extra ...slog.Handler) (*slog.Logger, Closer) {
	level := parseLevel(cfg.Level)

	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	var closer Closer = nopCloser{}
	if cfg.Async {
		ah := NewAsyncHandler(handler, asyncBuffer, 1)
		handler, closer = ah, ah
	}

	if len(extra) > 0 {
		handler = Fanout(append([]slog.Handler{handler}, extra...)...)
	}

	return slog.New(&contextHandler{inner: handler}).With("service", cfg.Service), closer
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
