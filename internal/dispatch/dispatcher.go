// Package dispatch is the single entry point both transports call: it
// times the agent loop and persists the outcome, recording statistics
// exactly once per completed query.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spudstack/tuber/internal/agent"
	"github.com/spudstack/tuber/internal/stats"
	"github.com/spudstack/tuber/internal/store"
	"go.uber.org/zap"
)

// ErrEmptyQuery rejects blank input at the dispatch boundary; the
// transports render it as a client error.
var ErrEmptyQuery = errors.New("empty query")

// persistTimeout bounds the background storage write.
const persistTimeout = 5 * time.Second

// Response is what a transport sends back to its client.
type Response struct {
	Answer           string
	ProcessingTimeMs int64
	Result           *agent.Result
}

// Dispatcher runs queries through the agent loop and owns their
// bookkeeping.
type Dispatcher struct {
	loop    *agent.Loop
	storage store.Storage
	stats   *stats.Aggregator
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a dispatcher. timeout <= 0 disables the per-query
// wall-clock deadline; the loop's iteration cap still bounds work.
func New(loop *agent.Loop, storage store.Storage, agg *stats.Aggregator, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		loop:    loop,
		storage: storage,
		stats:   agg,
		timeout: timeout,
		logger:  logger,
	}
}

// Handle runs one query to completion. A storage failure is logged and
// never fails the request; the stats update happens after the storage
// attempt is issued and before the response returns, so totals are
// exact the moment the caller sees the answer.
func (d *Dispatcher) Handle(ctx context.Context, queryText string) (*Response, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, ErrEmptyQuery
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	q := agent.NewQuery(queryText)
	result := d.loop.Run(ctx, q)
	elapsed := time.Since(start).Milliseconds()

	d.persistAsync(queryText, result.Answer, elapsed)
	d.stats.Record(elapsed)

	d.logger.Info("query processed",
		zap.String("query_id", q.ID),
		zap.Int("iterations", result.Iterations),
		zap.Int64("elapsed_ms", elapsed))

	return &Response{
		Answer:           result.Answer,
		ProcessingTimeMs: elapsed,
		Result:           result,
	}, nil
}

// persistAsync appends the record without blocking the response path.
func (d *Dispatcher) persistAsync(query, answer string, elapsedMs int64) {
	if d.storage == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := d.storage.Append(ctx, query, answer, elapsedMs); err != nil {
			d.logger.Warn("failed to persist query result", zap.Error(err))
		}
	}()
}

// Stats exposes the aggregator snapshot for the transports.
func (d *Dispatcher) Stats() stats.Snapshot {
	return d.stats.Get()
}
