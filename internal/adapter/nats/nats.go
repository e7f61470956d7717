// Package nats implements the event sink port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/fleetconsole/internal/resilience"
)

const (
	streamName      = "FLEETCONSOLE"
	eventTypeHeader = "Fleet-Event-Type"
	flushTimeout    = 2 * time.Second
)

// Sink forwards agent event frames to JetStream subjects <prefix>.<type>.
// Publishes are asynchronous so the connection read loop never waits on NATS;
// a circuit breaker stops publishing while NATS keeps failing.
type Sink struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	prefix  string
	breaker *resilience.Breaker
}

// Connect establishes a connection to NATS and ensures the JetStream stream
// capturing prefix.> exists. breaker may be nil.
func Connect(ctx context.Context, url, prefix string, breaker *resilience.Breaker) (*Sink, error) {
	nc, err := nats.Connect(url, nats.Name("fleetconsole"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{prefix + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	if breaker == nil {
		breaker = resilience.NewBreaker("nats", 5, 30*time.Second)
	}

	slog.Info("nats connected", "url", url, "stream", streamName, "subject", prefix+".>")
	return &Sink{nc: nc, js: js, prefix: prefix, breaker: breaker}, nil
}

// Forward publishes frame verbatim. It returns resilience.ErrCircuitOpen while
// the breaker is open.
func (s *Sink) Forward(_ context.Context, eventType string, frame []byte) error {
	msg := &nats.Msg{
		Subject: s.prefix + "." + eventType,
		Data:    frame,
		Header:  nats.Header{},
	}
	msg.Header.Set(eventTypeHeader, eventType)

	return s.breaker.Execute(func() error {
		if _, err := s.js.PublishMsgAsync(msg, jetstream.WithMsgID(uuid.NewString())); err != nil {
			return fmt.Errorf("nats publish %s: %w", msg.Subject, err)
		}
		return nil
	})
}

// Subscribe delivers every forwarded frame on prefix.> to handler, starting
// with new messages. The returned func stops delivery.
func (s *Sink) Subscribe(ctx context.Context, handler func(eventType string, frame []byte)) (func(), error) {
	consumer, err := s.js.OrderedConsumer(ctx, streamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{s.prefix + ".>"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		handler(msg.Headers().Get(eventTypeHeader), msg.Data())
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}
	return cons.Stop, nil
}

// Close waits briefly for pending publishes and shuts down the NATS connection.
func (s *Sink) Close() error {
	select {
	case <-s.js.PublishAsyncComplete():
	case <-time.After(flushTimeout):
		slog.Warn("nats close with pending publishes", "pending", s.js.PublishAsyncPending())
	}
	s.nc.Close()
	return nil
}
