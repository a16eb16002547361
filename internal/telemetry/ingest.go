package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// IngestMetrics counts input discarded while parsing GIOŚ documents and
// requests answered from the cache after a provider failure. It satisfies
// gios.Observer and airquality.FallbackRecorder.
type IngestMetrics struct {
	recordsDropped metric.Int64Counter
	datesSkipped   metric.Int64Counter
	cacheFallbacks metric.Int64Counter
}

// NewIngestMetrics registers the ingestion instruments on meter.
func NewIngestMetrics(meter metric.Meter) (*IngestMetrics, error) {
	recordsDropped, err := meter.Int64Counter(
		"aqdesk.ingest.records_dropped",
		metric.WithDescription("Stations or sensors dropped for lacking a valid id"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create records_dropped counter: %w", err)
	}

	datesSkipped, err := meter.Int64Counter(
		"aqdesk.ingest.dates_skipped",
		metric.WithDescription("Measurements skipped for an unparseable date"),
		metric.WithUnit("{measurement}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create dates_skipped counter: %w", err)
	}

	cacheFallbacks, err := meter.Int64Counter(
		"aqdesk.cache.fallbacks",
		metric.WithDescription("Requests served from the cache after a provider error"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache fallbacks counter: %w", err)
	}

	return &IngestMetrics{
		recordsDropped: recordsDropped,
		datesSkipped:   datesSkipped,
		cacheFallbacks: cacheFallbacks,
	}, nil
}

// RecordsDropped implements gios.Observer.
func (m *IngestMetrics) RecordsDropped(entity string, n int) {
	m.recordsDropped.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("entity", entity)))
}

// DatesSkipped implements gios.Observer.
func (m *IngestMetrics) DatesSkipped(n int) {
	m.datesSkipped.Add(context.Background(), int64(n))
}

// CacheFallback implements airquality.FallbackRecorder.
func (m *IngestMetrics) CacheFallback(ctx context.Context, entity string) {
	m.cacheFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", entity)))
}
