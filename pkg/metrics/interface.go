package metrics

import "context"

// Collector receives operation telemetry from the memory graph facade.
// The Prometheus-backed collector is always available; NoopCollector is
// compiled in as a stand-in when the 'metrics' build tag is absent.
type Collector interface {
	RecordOperation(ctx context.Context, operation string, status string, durationMs int64)
	RecordStage(ctx context.Context, operation string, stage string, durationMs int64)
	RecordError(ctx context.Context, operation string, errorType string)
	SetStorageCount(ctx context.Context, storageType string, count int64)
}
