// Package provider abstracts the text-generation backends the agent
// loop calls. Providers may fail or be absent; the router falls back
// down its chain, ending at the deterministic local generator.
package provider

import (
	"context"
	"time"
)

// Provider is a text-generation backend.
type Provider interface {
	ID() string
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is one generation call: system prompt plus user prompt.
type Request struct {
	Model       string  `json:"model"`
	System      string  `json:"system"`
	User        string  `json:"user"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Response carries the generated text.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Config holds configuration for a provider instance.
type Config struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Name     string        `json:"name"`
	Endpoint string        `json:"endpoint"`
	APIKey   string        `json:"api_key"`
	Model    string        `json:"model"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}
