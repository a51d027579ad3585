package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	historyKey = "tuber:queries"
	countKey   = "tuber:stats:count"
	sumKey     = "tuber:stats:sum_ms"

	// historyCap bounds the retained history list.
	historyCap = 1000
)

// Redis is a go-redis backed Storage implementation. Records live in a
// capped list; the aggregate is kept in two counters so Stats never has
// to scan history.
type Redis struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedis connects a Redis client from a URL.
func NewRedis(ctx context.Context, url string, logger *zap.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("Redis storage connected")
	return &Redis{rdb: rdb, logger: logger}, nil
}

// Append pushes a record onto the capped history list and bumps the
// aggregate counters in one pipeline.
func (s *Redis) Append(ctx context.Context, query, response string, processingTimeMs int64) error {
	rec := Record{
		ID:               uuid.New().String(),
		Query:            query,
		Response:         response,
		CreatedAt:        time.Now().UTC(),
		ProcessingTimeMs: processingTimeMs,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, historyKey, data)
	pipe.LTrim(ctx, historyKey, 0, historyCap-1)
	pipe.Incr(ctx, countKey)
	pipe.IncrBy(ctx, sumKey, processingTimeMs)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// Stats reads the aggregate counters. Missing keys read as zero.
func (s *Redis) Stats(ctx context.Context) (Aggregate, error) {
	vals, err := s.rdb.MGet(ctx, countKey, sumKey).Result()
	if err != nil {
		return Aggregate{}, fmt.Errorf("read stats counters: %w", err)
	}

	count := parseCounter(vals[0])
	sum := parseCounter(vals[1])

	agg := Aggregate{Count: count}
	if count > 0 {
		agg.AvgLatencyMs = float64(sum) / float64(count)
	}
	return agg, nil
}

func parseCounter(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Recent returns the newest records from the history list, optionally
// filtered by a substring match on the query text.
func (s *Redis) Recent(ctx context.Context, limit int, pattern string) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	raw, err := s.rdb.LRange(ctx, historyKey, 0, historyCap-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	pattern = strings.ToLower(strings.TrimSpace(pattern))
	var out []Record
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
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

// Close shuts down the Redis client.
func (s *Redis) Close() {
	if err := s.rdb.Close(); err != nil {
		s.logger.Warn("redis close failed", zap.Error(err))
	}
}
