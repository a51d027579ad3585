package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func chatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestOpenAIGenerate(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	ts := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("got path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello back"}},
			},
		})
	})

	p := NewOpenAIProvider(Config{
		ID: "test", Endpoint: ts.URL, APIKey: "secret", Model: "test-model",
	}, zap.NewNop())

	resp, err := p.Generate(context.Background(), &Request{System: "be brief", User: "hello"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "hello back" {
		t.Errorf("got %q", resp.Content)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("got auth %q", gotAuth)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" {
		t.Errorf("got messages %+v", gotBody.Messages)
	}
}

func TestOpenAIRetriesRateLimit(t *testing.T) {
	calls := 0
	ts := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "after retry"}},
			},
		})
	})

	p := NewOpenAIProvider(Config{ID: "test", Endpoint: ts.URL}, zap.NewNop())
	resp, err := p.Generate(context.Background(), &Request{User: "hello"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "after retry" {
		t.Errorf("got %q", resp.Content)
	}
	if calls != 2 {
		t.Errorf("got %d calls, want 2", calls)
	}
}

func TestOpenAIServerError(t *testing.T) {
	ts := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	p := NewOpenAIProvider(Config{ID: "test", Endpoint: ts.URL}, zap.NewNop())
	if _, err := p.Generate(context.Background(), &Request{User: "hello"}); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	ts := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	p := NewOpenAIProvider(Config{ID: "test", Endpoint: ts.URL}, zap.NewNop())
	if _, err := p.Generate(context.Background(), &Request{User: "hello"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
