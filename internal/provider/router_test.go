package provider

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type stubProvider struct {
	id   string
	err  error
	text string
}

func (p *stubProvider) ID() string   { return p.id }
func (p *stubProvider) Name() string { return p.id }
func (p *stubProvider) Generate(context.Context, *Request) (*Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &Response{Content: p.text, Model: p.id}, nil
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter(zap.NewNop())
	if _, err := r.Generate(context.Background(), &Request{User: "hi"}); err == nil {
		t.Fatal("expected error with no providers registered")
	}
}

func TestRouterFallbackChain(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&stubProvider{id: "primary", err: errors.New("rate limited")})
	r.Register(&stubProvider{id: "secondary", text: "from secondary"})

	resp, err := r.Generate(context.Background(), &Request{User: "hi"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "from secondary" {
		t.Errorf("got %q, want the second provider's answer", resp.Content)
	}
}

func TestRouterAllFail(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&stubProvider{id: "a", err: errors.New("down")})
	lastErr := errors.New("also down")
	r.Register(&stubProvider{id: "b", err: lastErr})

	_, err := r.Generate(context.Background(), &Request{User: "hi"})
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	if !errors.Is(err, lastErr) {
		t.Errorf("got %v, want the last provider's error wrapped", err)
	}
}

func TestRouterCancelledContext(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&stubProvider{id: "a", text: "never reached"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Generate(ctx, &Request{User: "hi"}); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestRouterList(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&stubProvider{id: "first"})
	r.Register(&stubProvider{id: "second"})

	ids := r.List()
	if len(ids) != 2 || ids[0] != "first" || ids[1] != "second" {
		t.Errorf("got %v, want [first second]", ids)
	}
}
