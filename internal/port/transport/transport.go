// Package transport defines the ports between the backend connection and its consumers.
package transport

import (
	"context"

	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
)

// Sender transmits encoded frames to the backend.
type Sender interface {
	// Send writes one frame. It fails with domain.ErrNotConnected when the
	// connection is not established and never waits for a reconnect.
	Send(ctx context.Context, data []byte) error

	// State reports the current connection state.
	State() fleet.ConnState
}

// FrameHandler consumes inbound frames in arrival order. It is called on the
// connection's read goroutine and must not block on the UI.
type FrameHandler func(ctx context.Context, frame []byte)

// ConnectedHook is invoked each time the connection reaches CONNECTED with
// the configured fleet size.
type ConnectedHook func(ctx context.Context, fleetSize int)

// StateHook observes connection state transitions.
type StateHook func(state fleet.ConnState)
