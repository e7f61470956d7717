package main

import (
	"context"
	"log/slog"

	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
)

// runHeadless logs each new fleet event until ctx is cancelled.
func runHeadless(ctx context.Context, store *fleet.Store) error {
	slog.Info("running headless")
	var lastID string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-store.Updates():
		}

		snap := store.Current()
		events := newEvents(snap.Events(), lastID)
		for _, e := range events {
			slog.Info(e.Message, "kind", e.Kind, "bot_id", e.AgentIndex, "at", e.At)
		}
		if len(events) > 0 {
			lastID = events[len(events)-1].ID
		}
	}
}

// newEvents returns the events logged after the one with id lastID. When
// lastID is empty or has been evicted from the log, all events are new.
func newEvents(events []fleet.Event, lastID string) []fleet.Event {
	if lastID == "" {
		return events
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].ID == lastID {
			return events[i+1:]
		}
	}
	return events
}
