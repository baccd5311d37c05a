package memograph

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dan-solli/memograph/pkg/trace"
)

// opTrace accumulates per-stage spans for a single operation.
// Stage names are stable: validate, write-graph, read-graph, rank,
// expand, path, aggregate.
type opTrace struct {
	spans []trace.SpanRecord
}

// span starts a timed stage and returns its finish function.
func (t *opTrace) span(name string) func(err error, counters map[string]int64) {
	start := time.Now()
	return func(err error, counters map[string]int64) {
		record := trace.SpanRecord{
			Name:       name,
			DurationMs: time.Since(start).Milliseconds(),
			OK:         err == nil,
			Counters:   counters,
		}
		if err != nil {
			record.ErrorType = ClassifyError(err)
		}
		t.spans = append(t.spans, record)
	}
}

// finishOp records metrics and exports the trace for a completed
// operation. Trace records carry only identifiers and timings.
func (m *Memograph) finishOp(ctx context.Context, operation string, start time.Time, t *opTrace, ids map[string]interface{}, err error) {
	durationMs := time.Since(start).Milliseconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if m.metrics != nil {
		m.metrics.RecordOperation(ctx, operation, status, durationMs)
		if err != nil {
			m.metrics.RecordError(ctx, operation, ClassifyError(err))
		}
	}

	if m.exporter == nil {
		return
	}
	record := &trace.TraceRecord{
		Timestamp:   start,
		OperationID: uuid.New().String(),
		Operation:   operation,
		DurationMs:  durationMs,
		Status:      status,
		Spans:       t.spans,
		IDs:         ids,
	}
	if err != nil {
		record.ErrorType = ClassifyError(err)
	}
	// Export failures must not fail the operation itself.
	_ = m.exporter.Export(ctx, record)
}
