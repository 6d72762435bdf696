// Package pricing provides the model price lookup adapter.
//
// The upstream is a LiteLLM-style proxy exposing GET /model/info with
// bearer-token auth. Each entry carries the public model name, the
// underlying provider model, and per-token costs.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arvend/tokengate/domain/cost"
	"github.com/arvend/tokengate/ports"
)

// Config configures the pricing client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client fetches per-model price rates from the pricing proxy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a pricing client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
	}
}

// modelInfo is the wire format of one /model/info entry.
type modelInfo struct {
	ModelName string `json:"model_name"`
	ModelInfo struct {
		InputCostPerToken          float64  `json:"input_cost_per_token"`
		OutputCostPerToken         float64  `json:"output_cost_per_token"`
		OutputCostPerReasoningToken *float64 `json:"output_cost_per_reasoning_token,omitempty"`
		MaxInputTokens             int64    `json:"max_input_tokens"`
		MaxTokens                  int64    `json:"max_tokens"`
	} `json:"model_info"`
	LiteLLMParams struct {
		Model string `json:"model"`
	} `json:"litellm_params"`
}

// FetchRates retrieves the full price table. Entries are indexed by
// both the public model name and the underlying provider model so
// lookups succeed whichever identifier the chat backend reports.
func (c *Client) FetchRates(ctx context.Context) (map[string]cost.Rate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/model/info", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch model info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var payload struct {
		Data []modelInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode model info: %w", err)
	}

	rates := make(map[string]cost.Rate, len(payload.Data)*2)
	for _, m := range payload.Data {
		r := cost.Rate{
			Model:             m.ModelName,
			InputPerToken:     m.ModelInfo.InputCostPerToken,
			OutputPerToken:    m.ModelInfo.OutputCostPerToken,
			ReasoningPerToken: m.ModelInfo.OutputCostPerReasoningToken,
			MaxContextTokens:  maxContext(m.ModelInfo.MaxInputTokens, m.ModelInfo.MaxTokens),
		}.Sanitize()

		if m.ModelName != "" {
			rates[m.ModelName] = r
		}
		// Same entry under the underlying model identifier; the first
		// public name wins when several deployments share a model.
		if um := m.LiteLLMParams.Model; um != "" {
			if _, exists := rates[um]; !exists {
				rates[um] = r
			}
		}
	}

	return rates, nil
}

func maxContext(maxInput, maxTokens int64) int64 {
	if maxInput > 0 {
		return maxInput
	}
	return maxTokens
}

// RemoteError represents a non-2xx response from the pricing proxy.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("pricing proxy error %d: %s", e.StatusCode, e.Message)
}

// Ensure interface compliance.
var _ ports.PriceSource = (*Client)(nil)
