package agent

import (
	"regexp"
	"strings"

	"github.com/spudstack/tuber/internal/provider"
)

// Decision is the typed reading of a backend response: either a direct
// answer, or an answer plus a list of requested tool invocations.
type Decision struct {
	Answer   string
	Marker   bool
	Requests []ToolRequest
}

// ToolRequest names one registered tool and its inline parameters.
type ToolRequest struct {
	Name   string
	Params map[string]string
}

// NeedsTools reports whether the loop should enter the executing state:
// the response either carries the structured marker or mentions at
// least one registered tool name. A single pass may then invoke zero or
// more tools.
func (d Decision) NeedsTools() bool { return d.Marker || len(d.Requests) > 0 }

// toolTokenRe matches tool-like tokens (snake_case identifiers) in
// free-form backend text.
var toolTokenRe = regexp.MustCompile(`\b([a-z][a-z0-9]*(?:_[a-z0-9]+)+)\b`)

// parseDecision reads a backend response into a Decision. Tool-like
// tokens that do not match a registered tool exactly are silently
// skipped; they are not errors. The registered check is supplied as a
// predicate so parsing stays testable without a registry.
func parseDecision(text string, registered func(string) bool) Decision {
	d := Decision{Answer: text, Marker: strings.Contains(text, provider.ToolMarker)}

	seen := make(map[string]bool)
	for _, m := range toolTokenRe.FindAllString(strings.ToLower(text), -1) {
		if seen[m] || !registered(m) {
			continue
		}
		seen[m] = true
		d.Requests = append(d.Requests, ToolRequest{
			Name:   m,
			Params: parseParams(text, m),
		})
	}

	return d
}

// parseParams extracts inline `tool_name(key=value, ...)` parameters.
// The name match is case-insensitive since tool tokens are extracted
// from lowercased text but the params live in the original.
func parseParams(text, toolName string) map[string]string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(toolName) + `\s*\(([^)]*)\)`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	params := make(map[string]string)
	for _, pair := range strings.Split(m[1], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.Trim(strings.TrimSpace(kv[1]), `"'`)
		if key != "" {
			params[key] = val
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}
