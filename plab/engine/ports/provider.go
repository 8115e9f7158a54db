package engineports

import (
	"context"
	"time"
)

// GenerateRequest carries everything the inference endpoint needs for one
// completion: the rendered prompt, the persona system prompt, and sampling
// options taken from the persona.
type GenerateRequest struct {
	Model       string
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
}

// GenerateResult is the endpoint's response plus the measured wall time of
// the call. Elapsed feeds the latency aggregates.
type GenerateResult struct {
	Text    string
	Elapsed time.Duration
}

// Provider is the abstraction over the LLM inference endpoint. The engine
// itself never talks to the network; provider failures are reported back to
// it as failed trials, not as engine errors.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	Models(ctx context.Context) ([]string, error)
}
