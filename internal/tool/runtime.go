package tool

import (
	"context"
	"runtime"
	"time"
)

// RuntimeProvider exposes process-level facts about the running
// service.
type RuntimeProvider struct {
	startedAt time.Time
}

// NewRuntimeProvider creates the provider; uptime counts from now.
func NewRuntimeProvider() *RuntimeProvider {
	return &RuntimeProvider{startedAt: time.Now()}
}

func (p *RuntimeProvider) Name() string { return "runtime" }

func (p *RuntimeProvider) Tools() []Tool {
	return []Tool{
		{Name: "get_uptime", Handler: p.getUptime},
		{Name: "get_system_info", Handler: p.getSystemInfo},
	}
}

func (p *RuntimeProvider) Start(context.Context) error    { return nil }
func (p *RuntimeProvider) Shutdown(context.Context) error { return nil }

func (p *RuntimeProvider) getUptime(context.Context, map[string]string) (any, error) {
	return map[string]any{
		"started_at":     p.startedAt.UTC(),
		"uptime_seconds": int64(time.Since(p.startedAt).Seconds()),
	}, nil
}

func (p *RuntimeProvider) getSystemInfo(context.Context, map[string]string) (any, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]any{
		"go_version":  runtime.Version(),
		"goroutines":  runtime.NumGoroutine(),
		"gomaxprocs":  runtime.GOMAXPROCS(0),
		"alloc_bytes": m.Alloc,
	}, nil
}
