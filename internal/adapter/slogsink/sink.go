// Package slogsink implements the event sink port by writing events to the log.
// It is used when no external sink is configured.
package slogsink

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Sink logs forwarded event frames at info level.
type Sink struct {
	log *slog.Logger
}

// New creates a Sink writing to l, or to slog.Default when l is nil.
func New(l *slog.Logger) *Sink {
	if l == nil {
		l = slog.Default()
	}
	return &Sink{log: l.With("component", "events")}
}

// Forward logs the frame as a raw JSON attribute.
func (s *Sink) Forward(ctx context.Context, eventType string, frame []byte) error {
	s.log.InfoContext(ctx, "fleet event", "type", eventType, "frame", json.RawMessage(frame))
	return nil
}
