// Package otel holds the console's OpenTelemetry instruments.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "fleetconsole"

// Metrics holds all console metric instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	DialAttempts   metric.Int64Counter
	DialFailures   metric.Int64Counter
	DialDuration   metric.Float64Histogram
	FramesReceived metric.Int64Counter
	DecodeErrors   metric.Int64Counter
	CommandsSent   metric.Int64Counter
	CommandsFailed metric.Int64Counter
	EventsDropped  metric.Int64Counter
}

// NewMetrics creates all metric instruments on mp. A nil mp uses the global provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.DialAttempts, err = meter.Int64Counter("fleetconsole.backend.dial_attempts",
		metric.WithDescription("Number of backend connection attempts"))
	if err != nil {
		return nil, err
	}

	m.DialFailures, err = meter.Int64Counter("fleetconsole.backend.dial_failures",
		metric.WithDescription("Number of failed backend connection attempts"))
	if err != nil {
		return nil, err
	}

	m.DialDuration, err = meter.Float64Histogram("fleetconsole.backend.dial_duration_seconds",
		metric.WithDescription("Backend dial duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.FramesReceived, err = meter.Int64Counter("fleetconsole.frames.received",
		metric.WithDescription("Number of inbound frames by type"))
	if err != nil {
		return nil, err
	}

	m.DecodeErrors, err = meter.Int64Counter("fleetconsole.frames.decode_errors",
		metric.WithDescription("Number of inbound frames dropped as malformed"))
	if err != nil {
		return nil, err
	}

	m.CommandsSent, err = meter.Int64Counter("fleetconsole.commands.sent",
		metric.WithDescription("Number of commands written to the backend"))
	if err != nil {
		return nil, err
	}

	m.CommandsFailed, err = meter.Int64Counter("fleetconsole.commands.failed",
		metric.WithDescription("Number of commands rejected or not delivered"))
	if err != nil {
		return nil, err
	}

	m.EventsDropped, err = meter.Int64Counter("fleetconsole.events.forward_failures",
		metric.WithDescription("Number of fleet events the external sink did not accept"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordDial records one connection attempt and its outcome.
func (m *Metrics) RecordDial(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DialAttempts.Add(ctx, 1)
	m.DialDuration.Record(ctx, d.Seconds())
	if err != nil {
		m.DialFailures.Add(ctx, 1)
	}
}

// RecordFrame counts an inbound frame of the given type. An empty type counts
// as a decode error.
func (m *Metrics) RecordFrame(ctx context.Context, frameType string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DecodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("type", frameType)))
		return
	}
	m.FramesReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("type", frameType)))
}

// RecordCommand counts a dispatched command by kind and outcome.
func (m *Metrics) RecordCommand(ctx context.Context, kind string, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("cmd", kind))
	if err != nil {
		m.CommandsFailed.Add(ctx, 1, attrs)
		return
	}
	m.CommandsSent.Add(ctx, 1, attrs)
}

// RecordForwardFailure counts an event the external sink did not accept.
func (m *Metrics) RecordForwardFailure(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.EventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}
