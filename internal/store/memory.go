package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Storage used when no database is configured
// and in tests. The history is capped like the Redis backend.
type Memory struct {
	mu      sync.Mutex
	records []Record
	count   int64
	sumMs   int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append records one completed query, newest first.
func (s *Memory) Append(_ context.Context, query, response string, processingTimeMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{
		ID:               uuid.New().String(),
		Query:            query,
		Response:         response,
		CreatedAt:        time.Now().UTC(),
		ProcessingTimeMs: processingTimeMs,
	}
	s.records = append([]Record{rec}, s.records...)
	if len(s.records) > historyCap {
		s.records = s.records[:historyCap]
	}
	s.count++
	s.sumMs += processingTimeMs
	return nil
}

// Stats returns the aggregate over everything appended so far.
func (s *Memory) Stats(_ context.Context) (Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg := Aggregate{Count: s.count}
	if s.count > 0 {
		agg.AvgLatencyMs = float64(s.sumMs) / float64(s.count)
	}
	return agg, nil
}

// Recent returns the newest records, optionally filtered by a substring
// match on the query text.
func (s *Memory) Recent(_ context.Context, limit int, pattern string) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pattern = strings.ToLower(strings.TrimSpace(pattern))
	var out []Record
	for _, rec := range s.records {
		if pattern != "" && !strings.Contains(strings.ToLower(rec.Query), pattern) {
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *Memory) Close() {}
