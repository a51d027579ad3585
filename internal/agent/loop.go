package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spudstack/tuber/internal/provider"
	"github.com/spudstack/tuber/internal/tool"
	"go.uber.org/zap"
)

// DefaultMaxIterations caps the reasoning loop when no override is
// configured.
const DefaultMaxIterations = 10

// maxIterationsAnswer is the fixed diagnostic returned when the loop
// does not converge. A defined terminal outcome, not an error.
const maxIterationsAnswer = "Agent max iterations reached"

// timeoutAnswer is returned when the per-query deadline expires before
// the loop converges.
const timeoutAnswer = "Query timed out before the agent could finish; partial results were discarded."

// Generator is the text-generation dependency of the loop, satisfied by
// provider.Router in production and by fakes in tests.
type Generator interface {
	Generate(ctx context.Context, req *provider.Request) (*provider.Response, error)
}

// Loop drives the per-query reasoning state machine. One Loop is shared
// by all queries; per-query state lives in the Session each Run owns.
type Loop struct {
	registry      *tool.Registry
	backend       Generator
	fallback      *provider.LocalProvider
	maxIterations int
	logger        *zap.Logger
}

// NewLoop creates the loop controller. maxIterations <= 0 selects the
// default cap.
func NewLoop(registry *tool.Registry, backend Generator, maxIterations int, logger *zap.Logger) *Loop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Loop{
		registry:      registry,
		backend:       backend,
		fallback:      provider.NewLocalProvider(),
		maxIterations: maxIterations,
		logger:        logger,
	}
}

// Run executes the loop to completion for one query. It always returns
// a usable Result; failures along the way are absorbed into the answer
// rather than propagated.
func (l *Loop) Run(ctx context.Context, q Query) *Result {
	start := time.Now()
	sess := &Session{Query: q, State: StateAnalyzing}
	catalog := l.toolCatalog()

	var toolsUsed []string
	usedSet := make(map[string]bool)

	resp, timedOut := l.generate(ctx, analysisPrompt(catalog), "Query: "+q.Text)
	sess.Iterations++
	if timedOut {
		return l.finish(sess, timeoutResult(), toolsUsed, start)
	}

	decision := parseDecision(resp, l.registry.Has)
	if !decision.NeedsTools() {
		// The common, cheap path: one round trip, no tools.
		sess.State = StateDone
		return l.finish(sess, outcome{answer: decision.Answer}, toolsUsed, start)
	}

	for sess.Iterations < l.maxIterations {
		sess.State = StateExecuting
		for _, req := range decision.Requests {
			if ctx.Err() != nil {
				return l.finish(sess, timeoutResult(), toolsUsed, start)
			}
			inv := l.registry.Invoke(ctx, req.Name, req.Params)
			sess.Invocations = append(sess.Invocations, inv)
			if !usedSet[req.Name] {
				usedSet[req.Name] = true
				toolsUsed = append(toolsUsed, req.Name)
			}
		}

		sess.State = StateSynthesizing
		if ctx.Err() != nil {
			return l.finish(sess, timeoutResult(), toolsUsed, start)
		}
		resp, timedOut = l.generate(ctx, synthesisPrompt(catalog), synthesisContext(q.Text, sess.Invocations))
		sess.Iterations++
		if timedOut {
			return l.finish(sess, timeoutResult(), toolsUsed, start)
		}

		decision = parseDecision(resp, l.registry.Has)
		if len(decision.Requests) == 0 {
			sess.State = StateDone
			l.logger.Debug("agent converged",
				zap.String("query_id", q.ID),
				zap.Int("iterations", sess.Iterations))
			return l.finish(sess, outcome{answer: decision.Answer}, toolsUsed, start)
		}
	}

	l.logger.Warn("agent reached max iterations",
		zap.String("query_id", q.ID),
		zap.Int("max", l.maxIterations))
	sess.State = StateDone
	return l.finish(sess, outcome{answer: maxIterationsAnswer, maxIterations: true}, toolsUsed, start)
}

type outcome struct {
	answer        string
	maxIterations bool
	timedOut      bool
}

func timeoutResult() outcome {
	return outcome{answer: timeoutAnswer, timedOut: true}
}

// generate calls the backend, falling back to the deterministic local
// generator on any non-cancellation failure. The bool result reports
// context expiry.
func (l *Loop) generate(ctx context.Context, system, user string) (string, bool) {
	req := &provider.Request{
		System:      system,
		User:        user,
		Temperature: 0.7,
		MaxTokens:   500,
	}

	resp, err := l.backend.Generate(ctx, req)
	if err == nil {
		return resp.Content, false
	}
	if ctx.Err() != nil {
		return "", true
	}

	l.logger.Warn("backend unavailable, using local fallback", zap.Error(err))
	resp, _ = l.fallback.Generate(ctx, req)
	return resp.Content, false
}

// finish stamps timing and appends the execution summary trailer.
func (l *Loop) finish(sess *Session, out outcome, toolsUsed []string, start time.Time) *Result {
	sess.State = StateDone
	elapsed := time.Since(start).Milliseconds()

	res := &Result{
		Answer:        out.answer,
		ToolsUsed:     toolsUsed,
		Iterations:    sess.Iterations,
		ElapsedMs:     elapsed,
		MaxIterations: out.maxIterations,
		TimedOut:      out.timedOut,
	}
	res.Answer = appendSummary(res)
	return res
}

// appendSummary renders the trailing execution summary so session
// metadata is never silently dropped.
func appendSummary(res *Result) string {
	used := "None"
	if len(res.ToolsUsed) > 0 {
		used = strings.Join(res.ToolsUsed, ", ")
	}

	var sb strings.Builder
	sb.WriteString(res.Answer)
	sb.WriteString("\n\n---\n[Agent Execution Summary]\n")
	fmt.Fprintf(&sb, "Tools Used: %s\n", used)
	fmt.Fprintf(&sb, "Iterations: %d\n", res.Iterations)
	fmt.Fprintf(&sb, "Processing Time: %dms\n", res.ElapsedMs)
	return sb.String()
}

func (l *Loop) toolCatalog() string {
	descriptors := l.registry.List()
	if len(descriptors) == 0 {
		return "No tools available"
	}

	var sb strings.Builder
	for _, d := range descriptors {
		fmt.Fprintf(&sb, "- %s (from %s)\n", d.Name, d.Provider)
	}
	return sb.String()
}

func analysisPrompt(catalog string) string {
	return "You are an agentic assistant answering natural-language queries.\n" +
		"Analyze the user query and decide if you need to use tools.\n" +
		"Available tools:\n" + catalog + "\n\n" +
		"If tools would help, respond with:\n" +
		provider.ToolMarker + "\n" +
		"tool_name1, tool_name2, ...\n\n" +
		"Otherwise provide a direct answer."
}

func synthesisPrompt(catalog string) string {
	return "You are an agentic assistant answering natural-language queries.\n" +
		"You have access to these tools:\n" + catalog + "\n" +
		"Based on the context and tool results, provide a comprehensive answer.\n" +
		"If you need more information, request additional tools."
}

// synthesisContext renders the original query plus every invocation so
// far, failures included, so the backend can route around them.
func synthesisContext(query string, invocations []tool.Invocation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User Query: %s\n\n", query)

	if len(invocations) > 0 {
		sb.WriteString("Tool Execution Results:\n")
		for _, inv := range invocations {
			if inv.Succeeded {
				fmt.Fprintf(&sb, "- %s: %s\n", inv.Tool, renderResult(inv.Result))
			} else {
				fmt.Fprintf(&sb, "- %s: failed (%s)\n", inv.Tool, inv.Message)
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Now synthesize these results into a comprehensive answer.")
	return sb.String()
}

func renderResult(v any) string {
	switch t := v.(type) {
	case nil:
		return "(empty)"
	case string:
		return t
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
