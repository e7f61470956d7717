// Package eventsink defines the port for forwarding agent events to an external log sink.
package eventsink

import "context"

// Sink receives agent event frames verbatim.
type Sink interface {
	// Forward delivers the raw frame of an event of the given type.
	Forward(ctx context.Context, eventType string, frame []byte) error
}
