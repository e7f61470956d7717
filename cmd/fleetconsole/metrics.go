package main

import (
	"context"
	"log/slog"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// logMetrics logs the session's counter totals once at shutdown.
func logMetrics(ctx context.Context, reader sdkmetric.Reader) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		slog.Warn("collect metrics failed", "error", err)
		return
	}
	totals := summarize(rm)
	attrs := make([]any, 0, 2*len(totals))
	for name, v := range totals {
		attrs = append(attrs, name, v)
	}
	slog.Info("session metrics", attrs...)
}

// summarize sums every int64 counter across its attribute sets.
func summarize(rm metricdata.ResourceMetrics) map[string]int64 {
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals
}
