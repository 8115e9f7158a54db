package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ports "personalab/plab/engine/ports"
)

// OllamaProvider talks to a local Ollama inference endpoint. Failures here
// (timeouts, connection refused, non-2xx statuses) are not engine errors:
// callers report them as failed trials so template statistics reflect
// endpoint reliability over time.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewOllamaProvider(baseURL string, timeout time.Duration, logger zerolog.Logger) *OllamaProvider {
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "ollama").Logger(),
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate performs one blocking completion call and measures its wall
// time. The elapsed time is returned even on failure, so failed trials
// carry a real latency observation.
func (p *OllamaProvider) Generate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	body, err := json.Marshal(generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return ports.GenerateResult{}, fmt.Errorf("could not marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return ports.GenerateResult{}, fmt.Errorf("could not build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		return ports.GenerateResult{Elapsed: elapsed}, fmt.Errorf("generate call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return ports.GenerateResult{Elapsed: elapsed}, fmt.Errorf("generate call returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ports.GenerateResult{Elapsed: elapsed}, fmt.Errorf("could not decode generate response: %w", err)
	}

	elapsed = time.Since(start)
	p.logger.Debug().Str("model", req.Model).Dur("elapsed", elapsed).Msg("completion received")
	return ports.GenerateResult{Text: strings.TrimSpace(out.Response), Elapsed: elapsed}, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Models lists the models installed on the endpoint.
func (p *OllamaProvider) Models(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("could not build tags request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tags call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("tags call returned status %d", resp.StatusCode)
	}

	var out tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("could not decode tags response: %w", err)
	}

	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Ensure OllamaProvider implements the Provider interface.
var _ ports.Provider = (*OllamaProvider)(nil)
