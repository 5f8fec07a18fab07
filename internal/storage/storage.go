package storage

import (
	"context"

	"yieldswap/internal/model"
)

// Storage is a sink for encoded pair and factory logs.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// MetricsSink receives aggregated pair windows.
type MetricsSink interface {
	PutWindowMetrics(ctx context.Context, metrics []model.PairWindowMetrics) error
}
