package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments exported over OTLP
type OTelMetrics struct {
	searchExecutions metric.Int64Counter
	searchDuration   metric.Float64Histogram
	exportBytes      metric.Int64Histogram
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/platinummonkey/adminkit")

	m := &OTelMetrics{}
	var err error

	m.searchExecutions, err = meter.Int64Counter(
		"adminkit.search.executions",
		metric.WithDescription("Total number of search executions"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search executions counter: %w", err)
	}

	m.searchDuration, err = meter.Float64Histogram(
		"adminkit.search.duration",
		metric.WithDescription("Search duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search duration histogram: %w", err)
	}

	m.exportBytes, err = meter.Int64Histogram(
		"adminkit.export.bytes",
		metric.WithDescription("Size of written export files"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create export bytes histogram: %w", err)
	}

	return m, nil
}

func (m *OTelMetrics) recordSearch(query, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("search.query", query),
		attribute.String("search.status", status),
	)
	ctx := context.Background()
	m.searchExecutions.Add(ctx, 1, attrs)
	m.searchDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordExportBytes records the size of a written export file
func (m *OTelMetrics) RecordExportBytes(ctx context.Context, query string, size int64) {
	if m == nil {
		return
	}
	m.exportBytes.Record(ctx, size, metric.WithAttributes(attribute.String("search.query", query)))
}
