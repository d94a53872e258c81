package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "finrisk-summary-engine"

func defaultTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// finishSpan records err (if any) and ends the span.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type batchMetrics struct {
	runs          otelmetric.Int64Counter
	rowsInserted  otelmetric.Int64Counter
	rowsProcessed otelmetric.Int64Counter
}

func newBatchMetrics() batchMetrics {
	meter := otel.Meter(instrumentationName)
	// errors only happen for invalid instrument names; the no-op fallback keeps runs going
	runs, _ := meter.Int64Counter("summary_batch_runs_total")
	inserted, _ := meter.Int64Counter("summary_batch_rows_inserted_total")
	processed, _ := meter.Int64Counter("summary_batch_rows_processed_total")
	return batchMetrics{runs: runs, rowsInserted: inserted, rowsProcessed: processed}
}

func (m batchMetrics) record(ctx context.Context, job, trigger, status string, inserted, processed int) {
	attrs := otelmetric.WithAttributes(
		attribute.String("job_name", job),
		attribute.String("trigger_type", trigger),
		attribute.String("status", status),
	)
	if m.runs != nil {
		m.runs.Add(ctx, 1, attrs)
	}
	if m.rowsInserted != nil && inserted > 0 {
		m.rowsInserted.Add(ctx, int64(inserted), attrs)
	}
	if m.rowsProcessed != nil && processed > 0 {
		m.rowsProcessed.Add(ctx, int64(processed), attrs)
	}
}
