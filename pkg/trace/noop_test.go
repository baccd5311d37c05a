//go:build !tracing

package trace

import (
	"context"
	"testing"
	"time"
)

func TestNewFileExporter_NoopWithoutTracing(t *testing.T) {
	exporter, err := NewFileExporter("ignored.jsonl")
	if err != nil {
		t.Fatalf("NewFileExporter failed: %v", err)
	}
	if exporter == nil {
		t.Fatal("Expected non-nil exporter")
	}

	record := &TraceRecord{
		Timestamp:   time.Now(),
		OperationID: "noop-op",
		Operation:   "search",
		DurationMs:  1,
		Status:      "success",
		Spans: []SpanRecord{
			{Name: "rank", DurationMs: 1, OK: true},
		},
	}

	if err := exporter.Export(context.Background(), record); err != nil {
		t.Fatalf("Export on noop exporter should succeed, got: %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("Close on noop exporter should succeed, got: %v", err)
	}
}
