// Package store persists completed query records and serves the
// aggregate used to seed statistics on restart. Storage is an
// append-mostly sink; every backend serializes its own writes.
package store

import (
	"context"
	"time"
)

// Record is one persisted query/response pair.
type Record struct {
	ID               string    `json:"id"`
	Query            string    `json:"query"`
	Response         string    `json:"response"`
	CreatedAt        time.Time `json:"created_at"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// Aggregate summarizes all persisted records.
type Aggregate struct {
	Count        int64   `json:"count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Storage is the persistence contract used by the dispatcher and the
// history tool provider. Failures are non-fatal to request handling.
type Storage interface {
	Append(ctx context.Context, query, response string, processingTimeMs int64) error
	Stats(ctx context.Context) (Aggregate, error)
	Recent(ctx context.Context, limit int, pattern string) ([]Record, error)
	Close()
}
