package payment

import (
	"fmt"

	"github.com/arvend/tokengate/adapters/idgen"
	"github.com/arvend/tokengate/config"
	"github.com/arvend/tokengate/ports"
)

// NewProvider creates a billing provider based on configuration.
func NewProvider(cfg config.BillingConfig) (ports.BillingProvider, error) {
	switch cfg.Mode {
	case "stripe":
		if cfg.StripeKey == "" {
			return nil, fmt.Errorf("stripe secret key is required")
		}
		return NewStripeProvider(StripeConfig{
			SecretKey:  cfg.StripeKey,
			PriceID:    cfg.StripePriceID,
			SuccessURL: cfg.CheckoutSuccessURL,
			CancelURL:  cfg.CheckoutCancelURL,
		}), nil

	case "dummy", "test":
		// Dummy provider for development - simulates subscribed users.
		baseURL := cfg.CheckoutSuccessURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}
		return NewDummyProvider(baseURL, idgen.UUID{}), nil

	case "none", "":
		return NewNoopProvider(), nil

	default:
		return nil, fmt.Errorf("unknown billing mode: %s", cfg.Mode)
	}
}
