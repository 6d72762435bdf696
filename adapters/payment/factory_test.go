package payment_test

import (
	"testing"

	"github.com/arvend/tokengate/adapters/payment"
	"github.com/arvend/tokengate/config"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.BillingConfig
		wantName string
		wantErr  bool
	}{
		{
			name:     "stripe",
			cfg:      config.BillingConfig{Mode: "stripe", StripeKey: "sk_test_123"},
			wantName: "stripe",
		},
		{
			name:    "stripe without key",
			cfg:     config.BillingConfig{Mode: "stripe"},
			wantErr: true,
		},
		{
			name:     "dummy",
			cfg:      config.BillingConfig{Mode: "dummy"},
			wantName: "dummy",
		},
		{
			name:     "test aliases dummy",
			cfg:      config.BillingConfig{Mode: "test"},
			wantName: "dummy",
		},
		{
			name:     "none",
			cfg:      config.BillingConfig{Mode: "none"},
			wantName: "none",
		},
		{
			name:     "empty mode disables billing",
			cfg:      config.BillingConfig{},
			wantName: "none",
		},
		{
			name:    "unknown mode",
			cfg:     config.BillingConfig{Mode: "paypal"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := payment.NewProvider(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got := p.Name(); got != tt.wantName {
				t.Errorf("provider name = %q, want %q", got, tt.wantName)
			}
		})
	}
}
