package stats

import "sync"

// Aggregator accumulates per-query latency statistics. All fields are
// guarded by a single mutex so count and sum can never drift apart
// under concurrent completion.
type Aggregator struct {
	mu    sync.Mutex
	count int64
	sumMs int64
	minMs int64
	maxMs int64
}

// Snapshot is a consistent read of the aggregate.
type Snapshot struct {
	TotalQueries     int64   `json:"totalQueries"`
	AverageLatencyMs float64 `json:"averageProcessingTimeMs"`
	MinLatencyMs     int64   `json:"minProcessingTimeMs"`
	MaxLatencyMs     int64   `json:"maxProcessingTimeMs"`
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Record adds one completed query's latency. Called exactly once per query.
func (a *Aggregator) Record(latencyMs int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 || latencyMs < a.minMs {
		a.minMs = latencyMs
	}
	if a.count == 0 || latencyMs > a.maxMs {
		a.maxMs = latencyMs
	}
	a.count++
	a.sumMs += latencyMs
}

// Seed initializes the aggregator from a persisted aggregate, typically at
// startup. Min/max cannot be recovered from an average and stay zero.
func (a *Aggregator) Seed(count int64, avgMs float64) {
	if count <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count = count
	a.sumMs = int64(avgMs * float64(count))
}

// Get returns the current snapshot. The average is recomputed from the
// accumulated sum at read time; an empty aggregator reports zero.
func (a *Aggregator) Get() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		TotalQueries: a.count,
		MinLatencyMs: a.minMs,
		MaxLatencyMs: a.maxMs,
	}
	if a.count > 0 {
		s.AverageLatencyMs = float64(a.sumMs) / float64(a.count)
	}
	return s
}
