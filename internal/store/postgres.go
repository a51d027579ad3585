package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS queries (
	id BIGSERIAL PRIMARY KEY,
	query TEXT NOT NULL,
	response TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	processing_time_ms BIGINT NOT NULL
)`

// Postgres is the pgx-backed Storage implementation.
type Postgres struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres connects a pgx pool and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	logger.Info("PostgreSQL storage connected")
	return &Postgres{db: pool, logger: logger}, nil
}

// Append inserts one completed query record.
func (s *Postgres) Append(ctx context.Context, query, response string, processingTimeMs int64) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO queries (query, response, processing_time_ms) VALUES ($1, $2, $3)`,
		query, response, processingTimeMs)
	if err != nil {
		return fmt.Errorf("insert query record: %w", err)
	}
	return nil
}

// Stats returns the count and average latency across all records.
func (s *Postgres) Stats(ctx context.Context) (Aggregate, error) {
	var agg Aggregate
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(processing_time_ms), 0) FROM queries`,
	).Scan(&agg.Count, &agg.AvgLatencyMs)
	if err != nil {
		return Aggregate{}, fmt.Errorf("query stats: %w", err)
	}
	return agg, nil
}

// Recent returns the newest records, optionally filtered by a substring
// match on the query text.
func (s *Postgres) Recent(ctx context.Context, limit int, pattern string) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	q := `SELECT id::text, query, response, created_at, processing_time_ms
	      FROM queries`
	args := []any{}
	if pattern != "" {
		q += ` WHERE query ILIKE $1`
		args = append(args, "%"+strings.TrimSpace(pattern)+"%")
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Query, &r.Response, &r.CreatedAt, &r.ProcessingTimeMs); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close shuts down the connection pool.
func (s *Postgres) Close() {
	s.db.Close()
}
