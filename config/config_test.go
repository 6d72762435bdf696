package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokengate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, `
billing:
  mode: dummy
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Billing.Timeout != 5*time.Second {
		t.Errorf("Billing.Timeout = %v, want 5s", cfg.Billing.Timeout)
	}
	if cfg.Pricing.CacheTTL != 10*time.Minute {
		t.Errorf("Pricing.CacheTTL = %v, want 10m", cfg.Pricing.CacheTTL)
	}
	if cfg.Currency.Secondary != "EUR" {
		t.Errorf("Currency.Secondary = %q, want EUR", cfg.Currency.Secondary)
	}
	if cfg.Currency.FailureTTL != 5*time.Minute {
		t.Errorf("Currency.FailureTTL = %v, want 5m", cfg.Currency.FailureTTL)
	}
	if cfg.Display.MarginMultiplier != 1.0 {
		t.Errorf("Display.MarginMultiplier = %g, want 1.0", cfg.Display.MarginMultiplier)
	}
	if cfg.Display.MinLoadingDuration != 400*time.Millisecond {
		t.Errorf("Display.MinLoadingDuration = %v, want 400ms", cfg.Display.MinLoadingDuration)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeTempConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
billing:
  mode: stripe
  stripe_key: sk_test_123
  whitelist_emails: "a@example.com,b@example.com"
pricing:
  base_url: https://litellm.internal
  cache_ttl: 15m
currency:
  base_url: https://fx.internal
  secondary: BRL
  failure_ttl: 2m
display:
  margin_multiplier: 1.5
  compare_model: gpt-4o
database:
  driver: memory
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Errorf("server = %s:%d, want 127.0.0.1:9090", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Billing.Mode != "stripe" || cfg.Billing.StripeKey != "sk_test_123" {
		t.Errorf("billing = %+v", cfg.Billing)
	}
	if cfg.Pricing.CacheTTL != 15*time.Minute {
		t.Errorf("Pricing.CacheTTL = %v, want 15m", cfg.Pricing.CacheTTL)
	}
	if cfg.Currency.Secondary != "BRL" {
		t.Errorf("Currency.Secondary = %q, want BRL", cfg.Currency.Secondary)
	}
	if cfg.Display.MarginMultiplier != 1.5 {
		t.Errorf("Display.MarginMultiplier = %g, want 1.5", cfg.Display.MarginMultiplier)
	}
	if cfg.Display.CompareModel != "gpt-4o" {
		t.Errorf("Display.CompareModel = %q, want gpt-4o", cfg.Display.CompareModel)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"valid dummy", "billing:\n  mode: dummy\n", false},
		{"unknown billing mode", "billing:\n  mode: paypal\n", true},
		{"stripe without key", "billing:\n  mode: stripe\n", true},
		{"bad driver", "billing:\n  mode: none\ndatabase:\n  driver: postgres\n", true},
		{"negative margin", "billing:\n  mode: none\ndisplay:\n  margin_multiplier: -1\n", true},
		{"bad currency code", "billing:\n  mode: none\ncurrency:\n  secondary: EURO\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempConfig(t, tt.yaml)
			_, err := Load(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("Load error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
billing:
  mode: dummy
display:
  margin_multiplier: 1.0
`)
	t.Setenv("TOKENGATE_SERVER_PORT", "9999")
	t.Setenv("TOKENGATE_DISPLAY_MARGIN", "2.5")
	t.Setenv("TOKENGATE_WHITELIST_EMAILS", "env@example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want env override 9999", cfg.Server.Port)
	}
	if cfg.Display.MarginMultiplier != 2.5 {
		t.Errorf("MarginMultiplier = %g, want env override 2.5", cfg.Display.MarginMultiplier)
	}
	if cfg.Billing.WhitelistEmails != "env@example.com" {
		t.Errorf("WhitelistEmails = %q, want env override", cfg.Billing.WhitelistEmails)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TOKENGATE_BILLING_MODE", "dummy")
	t.Setenv("TOKENGATE_DATABASE_DRIVER", "memory")
	t.Setenv("TOKENGATE_PRICING_BASE_URL", "https://litellm.internal")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Billing.Mode != "dummy" {
		t.Errorf("Billing.Mode = %q, want dummy", cfg.Billing.Mode)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("Database.Driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Pricing.BaseURL != "https://litellm.internal" {
		t.Errorf("Pricing.BaseURL = %q", cfg.Pricing.BaseURL)
	}
}

func TestLoadWithFallback(t *testing.T) {
	// File present: file wins.
	path := writeTempConfig(t, "billing:\n  mode: dummy\n")
	cfg, err := LoadWithFallback(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Billing.Mode != "dummy" {
		t.Errorf("Billing.Mode = %q, want dummy from file", cfg.Billing.Mode)
	}

	// No file, no env: error.
	if _, err := LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadWithFallback with nothing available: got nil error")
	}

	// No file, env present: env wins.
	t.Setenv("TOKENGATE_BILLING_MODE", "none")
	cfg, err = LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Billing.Mode != "none" {
		t.Errorf("Billing.Mode = %q, want none from env", cfg.Billing.Mode)
	}
}

func TestExpandEnvInFile(t *testing.T) {
	t.Setenv("TEST_STRIPE_KEY", "sk_test_expanded")
	path := writeTempConfig(t, `
billing:
  mode: stripe
  stripe_key: ${TEST_STRIPE_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Billing.StripeKey != "sk_test_expanded" {
		t.Errorf("StripeKey = %q, want expanded env value", cfg.Billing.StripeKey)
	}
}
