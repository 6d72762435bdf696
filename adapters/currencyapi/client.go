// Package currencyapi provides the exchange rate lookup adapter.
package currencyapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/arvend/tokengate/ports"
)

// Config configures the exchange rate client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches USD-to-secondary exchange rates.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates an exchange rate client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
	}
}

// FetchRate retrieves the USD multiplier for the given currency code.
// Wire format: {"rates": {"EUR": 0.92, ...}}.
func (c *Client) FetchRate(ctx context.Context, currency string) (float64, error) {
	url := fmt.Sprintf("%s/latest?base=USD&symbols=%s", c.baseURL, currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch exchange rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("exchange rate error %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode exchange rate: %w", err)
	}

	rate, ok := payload.Rates[currency]
	if !ok {
		return 0, fmt.Errorf("no rate for currency %s", currency)
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, fmt.Errorf("invalid rate %v for currency %s", rate, currency)
	}

	return rate, nil
}

// Ensure interface compliance.
var _ ports.CurrencySource = (*Client)(nil)
