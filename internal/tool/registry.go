package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Handler executes a single tool call. The returned value is opaque to the
// registry; it is rendered into the synthesis prompt by the caller.
type Handler func(ctx context.Context, params map[string]string) (any, error)

// Tool pairs a name with its handler. Providers publish tools in a stable
// order so discovery catalogs stay deterministic.
type Tool struct {
	Name    string
	Handler Handler
}

// Provider is an independently-owned set of tools with lifecycle hooks.
type Provider interface {
	Name() string
	Tools() []Tool
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Descriptor identifies a registered tool and its owning provider.
type Descriptor struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Invocation is the outcome of one tool call. Failure is a normal,
// representable outcome, never an error return.
type Invocation struct {
	Tool      string            `json:"tool"`
	Params    map[string]string `json:"params,omitempty"`
	Succeeded bool              `json:"succeeded"`
	Result    any               `json:"result,omitempty"`
	Message   string            `json:"message"`
}

// DuplicateToolError reports a tool name collision during registration.
type DuplicateToolError struct {
	Tool  string
	Owner string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered by provider %q", e.Tool, e.Owner)
}

type binding struct {
	provider string
	handler  Handler
}

// Registry aggregates all providers and dispatches invocations by tool
// name. The name map is read-mostly: registration happens at startup,
// lookups happen on every query.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]binding
	order     []string
	providers []Provider
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byName: make(map[string]binding),
		logger: logger,
	}
}

// Register adds all of a provider's tools. Registration is all-or-nothing:
// if any name collides with an already-registered tool, nothing is added
// and a DuplicateToolError is returned.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tools := p.Tools()
	for _, t := range tools {
		if existing, ok := r.byName[t.Name]; ok {
			return &DuplicateToolError{Tool: t.Name, Owner: existing.provider}
		}
	}
	for _, t := range tools {
		r.byName[t.Name] = binding{provider: p.Name(), handler: t.Handler}
		r.order = append(r.order, t.Name)
	}
	r.providers = append(r.providers, p)
	r.logger.Info("registered tool provider",
		zap.String("provider", p.Name()),
		zap.Int("tools", len(tools)))
	return nil
}

// Invoke dispatches a tool call by name. It never returns an error or
// panics to the caller: an unknown name yields a failed invocation with
// message "tool not found", and a handler error or panic is converted
// into a failed invocation carrying the error text.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]string) Invocation {
	r.mu.RLock()
	b, ok := r.byName[name]
	r.mu.RUnlock()

	inv := Invocation{Tool: name, Params: params}
	if !ok {
		inv.Message = "tool not found"
		return inv
	}

	result, err := r.safeCall(ctx, b.handler, params)
	if err != nil {
		r.logger.Error("tool invocation failed",
			zap.String("tool", name),
			zap.String("provider", b.provider),
			zap.Error(err))
		inv.Message = err.Error()
		return inv
	}

	inv.Succeeded = true
	inv.Message = "success"
	inv.Result = result
	return inv
}

// safeCall runs a handler without holding any registry lock, catching
// panics so a misbehaving provider cannot abort the calling session.
func (r *Registry) safeCall(ctx context.Context, h Handler, params map[string]string) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()
	return h(ctx, params)
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// List returns a snapshot of all registered tools in registration order.
// Safe to call concurrently with Invoke.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Descriptor{Name: name, Provider: r.byName[name].provider})
	}
	return out
}

// StartAll starts every provider. A single provider's failure is logged
// and does not abort the others.
func (r *Registry) StartAll(ctx context.Context) {
	r.mu.RLock()
	providers := append([]Provider(nil), r.providers...)
	r.mu.RUnlock()

	for _, p := range providers {
		if err := p.Start(ctx); err != nil {
			r.logger.Warn("tool provider failed to start",
				zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		r.logger.Info("tool provider started", zap.String("provider", p.Name()))
	}
}

// ShutdownAll stops every provider, best-effort.
func (r *Registry) ShutdownAll(ctx context.Context) {
	r.mu.RLock()
	providers := append([]Provider(nil), r.providers...)
	r.mu.RUnlock()

	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			r.logger.Warn("tool provider failed to stop",
				zap.String("provider", p.Name()), zap.Error(err))
		}
	}
}

// Status renders a human-readable report of providers and tool counts.
func (r *Registry) Status() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "ToolRegistry: %d provider(s), %d tool(s)\n", len(r.providers), len(r.byName))
	for _, p := range r.providers {
		fmt.Fprintf(&sb, "  - %s (%d tools)\n", p.Name(), len(p.Tools()))
	}
	return sb.String()
}
