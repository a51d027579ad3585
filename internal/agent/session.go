// Package agent implements the bounded tool-orchestration loop: decide
// whether a query needs tools, then invoke and re-synthesize until the
// backend converges on an answer or the iteration cap is hit.
package agent

import (
	"time"

	"github.com/google/uuid"
	"github.com/spudstack/tuber/internal/tool"
)

// State is the loop's position in its per-query state machine.
type State string

const (
	StateAnalyzing    State = "ANALYZING"
	StateExecuting    State = "EXECUTING"
	StateSynthesizing State = "SYNTHESIZING"
	StateDone         State = "DONE"
)

// Query is the immutable value created at ingress.
type Query struct {
	ID         string
	Text       string
	ReceivedAt time.Time
}

// NewQuery assigns an ID and receipt timestamp to a query text.
func NewQuery(text string) Query {
	return Query{
		ID:         uuid.New().String(),
		Text:       text,
		ReceivedAt: time.Now(),
	}
}

// Session is the per-query mutable state, owned exclusively by one loop
// execution and never shared across goroutines.
type Session struct {
	Query       Query
	Iterations  int
	Invocations []tool.Invocation
	State       State
}

// Result is the loop's output: the final answer plus execution metadata.
type Result struct {
	Answer        string   `json:"answer"`
	ToolsUsed     []string `json:"tools_used"`
	Iterations    int      `json:"iterations"`
	ElapsedMs     int64    `json:"elapsed_ms"`
	MaxIterations bool     `json:"max_iterations_reached,omitempty"`
	TimedOut      bool     `json:"timed_out,omitempty"`
}
