package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router holds the configured providers in fallback order and routes
// each generation call down the chain until one succeeds.
type Router struct {
	mu        sync.RWMutex
	providers []Provider
	logger    *zap.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{logger: logger}
}

// Register appends a provider to the fallback chain. The local fallback
// is conventionally registered last.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
	r.logger.Info("registered provider",
		zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// Generate routes the request to the first provider that succeeds.
// Context cancellation stops the chain immediately.
func (r *Router) Generate(ctx context.Context, req *Request) (*Response, error) {
	r.mu.RLock()
	providers := append([]Provider(nil), r.providers...)
	r.mu.RUnlock()

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers registered")
	}

	var lastErr error
	for _, p := range providers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := p.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		r.logger.Warn("provider failed, trying next",
			zap.String("provider", p.ID()), zap.Error(err))
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// List returns the provider IDs in fallback order.
func (r *Router) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.providers))
	for i, p := range r.providers {
		out[i] = p.ID()
	}
	return out
}
