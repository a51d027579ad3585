package tool

import (
	"context"
	"testing"

	"github.com/spudstack/tuber/internal/store"
	"go.uber.org/zap"
)

func newHistoryRegistry(t *testing.T) (*Registry, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	reg := NewRegistry(zap.NewNop())
	if err := reg.Register(NewHistoryProvider(mem, zap.NewNop())); err != nil {
		t.Fatalf("register history provider: %v", err)
	}
	return reg, mem
}

func TestHistoryProviderToolNames(t *testing.T) {
	reg, _ := newHistoryRegistry(t)

	for _, name := range []string{"query_history", "get_stats", "save_query", "search_similar", "get_query_context"} {
		if !reg.Has(name) {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestQueryHistoryTool(t *testing.T) {
	reg, mem := newHistoryRegistry(t)
	ctx := context.Background()

	mem.Append(ctx, "how to grow potatoes", "plant them", 5)
	mem.Append(ctx, "potato diseases", "blight mostly", 5)

	inv := reg.Invoke(ctx, "query_history", map[string]string{"limit": "10"})
	if !inv.Succeeded {
		t.Fatalf("invocation failed: %s", inv.Message)
	}
	lines, ok := inv.Result.([]string)
	if !ok {
		t.Fatalf("got %T, want []string", inv.Result)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "Query 1: potato diseases" {
		t.Errorf("got %q, want newest query first", lines[0])
	}
}

func TestGetStatsTool(t *testing.T) {
	reg, mem := newHistoryRegistry(t)
	ctx := context.Background()

	mem.Append(ctx, "q1", "r1", 10)
	mem.Append(ctx, "q2", "r2", 20)

	inv := reg.Invoke(ctx, "get_stats", nil)
	if !inv.Succeeded {
		t.Fatalf("invocation failed: %s", inv.Message)
	}
	result := inv.Result.(map[string]any)
	if result["total_queries"].(int64) != 2 {
		t.Errorf("got total %v, want 2", result["total_queries"])
	}
	if result["average_processing_time_ms"].(float64) != 15 {
		t.Errorf("got average %v, want 15", result["average_processing_time_ms"])
	}
	if result["time_range"] != "all" {
		t.Errorf("got time_range %v, want all", result["time_range"])
	}
}

func TestSaveQueryTool(t *testing.T) {
	reg, mem := newHistoryRegistry(t)
	ctx := context.Background()

	inv := reg.Invoke(ctx, "save_query", map[string]string{
		"query":           "stored question",
		"response":        "stored answer",
		"processing_time": "42",
	})
	if !inv.Succeeded {
		t.Fatalf("invocation failed: %s", inv.Message)
	}

	records, _ := mem.Recent(ctx, 10, "")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Query != "stored question" || records[0].ProcessingTimeMs != 42 {
		t.Errorf("got %+v, want stored question / 42ms", records[0])
	}
}

func TestSaveQueryRequiresFields(t *testing.T) {
	reg, _ := newHistoryRegistry(t)

	inv := reg.Invoke(context.Background(), "save_query", map[string]string{"query": "only a query"})
	if inv.Succeeded {
		t.Fatal("expected failure without a response param")
	}
}

func TestSearchSimilarTool(t *testing.T) {
	reg, mem := newHistoryRegistry(t)
	ctx := context.Background()

	mem.Append(ctx, "how can I grow potatoes indoors", "r", 1)
	mem.Append(ctx, "weather on mars", "r", 1)

	inv := reg.Invoke(ctx, "search_similar", map[string]string{
		"query_text":           "grow potatoes indoors",
		"similarity_threshold": "0.5",
	})
	if !inv.Succeeded {
		t.Fatalf("invocation failed: %s", inv.Message)
	}

	inv = reg.Invoke(ctx, "search_similar", nil)
	if inv.Succeeded {
		t.Fatal("expected failure without query_text")
	}
}

func TestGetQueryContextTool(t *testing.T) {
	reg, mem := newHistoryRegistry(t)
	ctx := context.Background()

	mem.Append(ctx, "a known query", "r", 7)
	records, _ := mem.Recent(ctx, 1, "")

	inv := reg.Invoke(ctx, "get_query_context", map[string]string{"query_id": records[0].ID})
	if !inv.Succeeded {
		t.Fatalf("invocation failed: %s", inv.Message)
	}
	result := inv.Result.(map[string]any)
	if result["original_query"] != "a known query" {
		t.Errorf("got %v, want a known query", result["original_query"])
	}

	inv = reg.Invoke(ctx, "get_query_context", map[string]string{"query_id": "missing-id"})
	if inv.Succeeded {
		t.Fatal("expected failure for unknown query id")
	}
}

func TestTokenOverlap(t *testing.T) {
	if sim := tokenOverlap("grow potatoes fast", "grow potatoes fast"); sim != 1 {
		t.Errorf("identical texts: got %f, want 1", sim)
	}
	if sim := tokenOverlap("potatoes", "weather"); sim != 0 {
		t.Errorf("disjoint texts: got %f, want 0", sim)
	}
	if sim := tokenOverlap("", "anything"); sim != 0 {
		t.Errorf("empty text: got %f, want 0", sim)
	}
}
