package otel

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ShutdownFunc is called to flush and shut down the meter provider.
type ShutdownFunc func(ctx context.Context) error

// InitMeterProvider installs an SDK meter provider as the global provider.
// Without a reader the instruments aggregate in memory only; the console has
// no exporter endpoint of its own.
func InitMeterProvider(serviceName string, readers ...sdkmetric.Reader) (*sdkmetric.MeterProvider, ShutdownFunc) {
	opts := make([]sdkmetric.Option, 0, len(readers)+1)
	opts = append(opts, sdkmetric.WithResource(resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)))
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	slog.Debug("meter provider initialized", "service", serviceName, "readers", len(readers))
	return mp, mp.Shutdown
}
