package tool

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spudstack/tuber/internal/store"
	"go.uber.org/zap"
)

// HistoryProvider exposes query-history tools backed by the storage
// layer, so the reasoning loop can ground answers in past queries
// without direct database access.
type HistoryProvider struct {
	storage store.Storage
	logger  *zap.Logger
}

// NewHistoryProvider creates the provider over the given storage.
func NewHistoryProvider(storage store.Storage, logger *zap.Logger) *HistoryProvider {
	return &HistoryProvider{storage: storage, logger: logger}
}

func (p *HistoryProvider) Name() string { return "history" }

// Tools publishes the provider's operations in a stable order.
func (p *HistoryProvider) Tools() []Tool {
	return []Tool{
		{Name: "query_history", Handler: p.queryHistory},
		{Name: "get_stats", Handler: p.getStats},
		{Name: "save_query", Handler: p.saveQuery},
		{Name: "search_similar", Handler: p.searchSimilar},
		{Name: "get_query_context", Handler: p.getQueryContext},
	}
}

// Start verifies the storage is reachable.
func (p *HistoryProvider) Start(ctx context.Context) error {
	if _, err := p.storage.Stats(ctx); err != nil {
		return fmt.Errorf("storage check: %w", err)
	}
	return nil
}

func (p *HistoryProvider) Shutdown(context.Context) error { return nil }

func (p *HistoryProvider) queryHistory(ctx context.Context, params map[string]string) (any, error) {
	limit := intParam(params, "limit", 10)
	records, err := p.storage.Recent(ctx, limit, params["pattern"])
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(records))
	for i, rec := range records {
		out = append(out, fmt.Sprintf("Query %d: %s", i+1, rec.Query))
	}
	return out, nil
}

func (p *HistoryProvider) getStats(ctx context.Context, params map[string]string) (any, error) {
	agg, err := p.storage.Stats(ctx)
	if err != nil {
		return nil, err
	}

	timeRange := params["time_range"]
	if timeRange == "" {
		timeRange = "all"
	}
	return map[string]any{
		"total_queries":              agg.Count,
		"average_processing_time_ms": agg.AvgLatencyMs,
		"time_range":                 timeRange,
	}, nil
}

func (p *HistoryProvider) saveQuery(ctx context.Context, params map[string]string) (any, error) {
	query := params["query"]
	response := params["response"]
	if query == "" || response == "" {
		return nil, fmt.Errorf("query and response are required")
	}
	processingTime := int64(intParam(params, "processing_time", 0))

	if err := p.storage.Append(ctx, query, response, processingTime); err != nil {
		return nil, err
	}

	preview := response
	if len(preview) > 50 {
		preview = preview[:50] + "..."
	}
	return map[string]any{
		"query":              query,
		"response_preview":   preview,
		"processing_time_ms": processingTime,
		"timestamp":          time.Now().UnixMilli(),
		"status":             "saved",
	}, nil
}

func (p *HistoryProvider) searchSimilar(ctx context.Context, params map[string]string) (any, error) {
	queryText := params["query_text"]
	if queryText == "" {
		return nil, fmt.Errorf("query_text is required")
	}
	threshold := floatParam(params, "similarity_threshold", 0.7)

	records, err := p.storage.Recent(ctx, 100, "")
	if err != nil {
		return nil, err
	}

	type match struct {
		Query      string  `json:"query"`
		Similarity float64 `json:"similarity"`
	}
	var matches []match
	for _, rec := range records {
		sim := tokenOverlap(queryText, rec.Query)
		if sim >= threshold {
			matches = append(matches, match{Query: rec.Query, Similarity: sim})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > 10 {
		matches = matches[:10]
	}
	return matches, nil
}

func (p *HistoryProvider) getQueryContext(ctx context.Context, params map[string]string) (any, error) {
	queryID := params["query_id"]
	if queryID == "" {
		return nil, fmt.Errorf("query_id is required")
	}

	records, err := p.storage.Recent(ctx, historyScanLimit, "")
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == queryID {
			return map[string]any{
				"query_id":          rec.ID,
				"original_query":    rec.Query,
				"execution_time_ms": rec.ProcessingTimeMs,
				"created_at":        rec.CreatedAt,
			}, nil
		}
	}
	return nil, fmt.Errorf("query %s not found", queryID)
}

const historyScanLimit = 1000

// tokenOverlap is a Jaccard similarity over lowercase word sets. Good
// enough for "have we seen this question before" grounding.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for w := range setA {
		if setB[w] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?\"'()")
		if len(w) >= 3 {
			out[w] = true
		}
	}
	return out
}

func intParam(params map[string]string, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func floatParam(params map[string]string, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}
