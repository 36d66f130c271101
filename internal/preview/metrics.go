package preview

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	resolutions metric.Int64Counter
	uploads     metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}

	var err error
	m.resolutions, err = meter.Int64Counter("preview.resolutions",
		metric.WithDescription("Preview resolutions by winning strategy"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		slog.Warn("creating preview.resolutions counter", "error", err)
		m.resolutions = noop.Int64Counter{}
	}

	m.uploads, err = meter.Int64Counter("preview.uploads",
		metric.WithDescription("User-supplied preview images stored"),
		metric.WithUnit("{image}"),
	)
	if err != nil {
		slog.Warn("creating preview.uploads counter", "error", err)
		m.uploads = noop.Int64Counter{}
	}
	return m
}

func (m *metrics) record(ctx context.Context, strategy string) {
	m.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
}

func (m *metrics) recordUpload(ctx context.Context) {
	m.uploads.Add(ctx, 1)
}
