// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Billing  BillingConfig  `yaml:"billing"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Currency CurrencyConfig `yaml:"currency"`
	Display  DisplayConfig  `yaml:"display"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuthConfig configures session token verification. Tokens are minted
// by the external auth collaborator; tokengate only verifies them.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// BillingConfig configures the billing provider.
// Use "none", "stripe", or "dummy".
type BillingConfig struct {
	Mode               string        `yaml:"mode"`
	StripeKey          string        `yaml:"stripe_key,omitempty"`
	StripePriceID      string        `yaml:"stripe_price_id,omitempty"`
	CheckoutSuccessURL string        `yaml:"checkout_success_url,omitempty"`
	CheckoutCancelURL  string        `yaml:"checkout_cancel_url,omitempty"`
	Timeout            time.Duration `yaml:"timeout"`

	// Comma-separated identities exempted from the subscription check.
	WhitelistEmails  string `yaml:"whitelist_emails,omitempty"`
	WhitelistUserIDs string `yaml:"whitelist_user_ids,omitempty"`
}

// PricingConfig configures the model price lookup service.
type PricingConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key,omitempty"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// CurrencyConfig configures the exchange rate service.
type CurrencyConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Secondary string        `yaml:"secondary"` // display currency code, e.g. "BRL"
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	// FailureTTL bounds how long a failed rate fetch suppresses
	// retries; shorter than CacheTTL so outages recover quickly.
	FailureTTL time.Duration `yaml:"failure_ttl"`
}

// DisplayConfig configures cost presentation.
type DisplayConfig struct {
	// MarginMultiplier scales every displayed cost; the stored
	// snapshot keeps the raw provider cost.
	MarginMultiplier float64 `yaml:"margin_multiplier"`
	// MinLoadingDuration is the minimum visible duration of a
	// user-triggered recheck.
	MinLoadingDuration time.Duration `yaml:"min_loading_duration"`
	// CompareModel is the model used for the illustrative "N times
	// more expensive on X" estimate. Empty disables the comparison.
	CompareModel string `yaml:"compare_model,omitempty"`
}

// DatabaseConfig configures the snapshot database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	TOKENGATE_BILLING_MODE        - Billing mode: none, stripe, dummy
//	TOKENGATE_BILLING_STRIPE_KEY  - Stripe secret key
//	TOKENGATE_PRICING_BASE_URL    - Model pricing proxy base URL
//	TOKENGATE_PRICING_API_KEY     - Bearer token for the pricing proxy
//	TOKENGATE_CURRENCY_BASE_URL   - Exchange rate service base URL
//	TOKENGATE_DATABASE_DSN        - Snapshot database path
//	TOKENGATE_SERVER_PORT         - Server port (default: 8080)
//	TOKENGATE_AUTH_JWT_SECRET     - Session token verification secret
//	TOKENGATE_WHITELIST_EMAILS    - Comma-separated whitelisted emails
//	TOKENGATE_WHITELIST_USER_IDS  - Comma-separated whitelisted user IDs
//	TOKENGATE_LOG_LEVEL           - Log level (default: info)
//	TOKENGATE_LOG_FORMAT          - json or console (default: json)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set TOKENGATE_BILLING_MODE")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("TOKENGATE_BILLING_MODE") != ""
}

// applyEnvOverrides applies TOKENGATE_* environment variables to the
// config. Environment variables always override file-based values.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("TOKENGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TOKENGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TOKENGATE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("TOKENGATE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Auth configuration
	if v := os.Getenv("TOKENGATE_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	// Billing configuration
	if v := os.Getenv("TOKENGATE_BILLING_MODE"); v != "" {
		cfg.Billing.Mode = v
	}
	if v := os.Getenv("TOKENGATE_BILLING_STRIPE_KEY"); v != "" {
		cfg.Billing.StripeKey = v
	}
	if v := os.Getenv("TOKENGATE_BILLING_STRIPE_PRICE_ID"); v != "" {
		cfg.Billing.StripePriceID = v
	}
	if v := os.Getenv("TOKENGATE_BILLING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Billing.Timeout = d
		}
	}
	if v := os.Getenv("TOKENGATE_WHITELIST_EMAILS"); v != "" {
		cfg.Billing.WhitelistEmails = v
	}
	if v := os.Getenv("TOKENGATE_WHITELIST_USER_IDS"); v != "" {
		cfg.Billing.WhitelistUserIDs = v
	}

	// Pricing configuration
	if v := os.Getenv("TOKENGATE_PRICING_BASE_URL"); v != "" {
		cfg.Pricing.BaseURL = v
	}
	if v := os.Getenv("TOKENGATE_PRICING_API_KEY"); v != "" {
		cfg.Pricing.APIKey = v
	}
	if v := os.Getenv("TOKENGATE_PRICING_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pricing.CacheTTL = d
		}
	}

	// Currency configuration
	if v := os.Getenv("TOKENGATE_CURRENCY_BASE_URL"); v != "" {
		cfg.Currency.BaseURL = v
	}
	if v := os.Getenv("TOKENGATE_CURRENCY_SECONDARY"); v != "" {
		cfg.Currency.Secondary = v
	}

	// Display configuration
	if v := os.Getenv("TOKENGATE_DISPLAY_MARGIN"); v != "" {
		if m, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Display.MarginMultiplier = m
		}
	}

	// Database configuration
	if v := os.Getenv("TOKENGATE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("TOKENGATE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Logging configuration
	if v := os.Getenv("TOKENGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TOKENGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("TOKENGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("TOKENGATE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Billing.Mode == "" {
		cfg.Billing.Mode = "none"
	}
	if cfg.Billing.Timeout == 0 {
		cfg.Billing.Timeout = 5 * time.Second
	}

	if cfg.Pricing.Timeout == 0 {
		cfg.Pricing.Timeout = 5 * time.Second
	}
	if cfg.Pricing.CacheTTL == 0 {
		cfg.Pricing.CacheTTL = 10 * time.Minute
	}

	if cfg.Currency.Secondary == "" {
		cfg.Currency.Secondary = "EUR"
	}
	if cfg.Currency.Timeout == 0 {
		cfg.Currency.Timeout = 5 * time.Second
	}
	if cfg.Currency.CacheTTL == 0 {
		cfg.Currency.CacheTTL = time.Hour
	}
	if cfg.Currency.FailureTTL == 0 {
		cfg.Currency.FailureTTL = 5 * time.Minute
	}

	if cfg.Display.MarginMultiplier == 0 {
		cfg.Display.MarginMultiplier = 1.0
	}
	if cfg.Display.MinLoadingDuration == 0 {
		cfg.Display.MinLoadingDuration = 400 * time.Millisecond
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "tokengate.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	validBillingModes := map[string]bool{
		"none": true, "stripe": true, "dummy": true, "test": true,
	}
	if !validBillingModes[cfg.Billing.Mode] {
		return fmt.Errorf("billing.mode must be one of: none, stripe, dummy")
	}
	if cfg.Billing.Mode == "stripe" && cfg.Billing.StripeKey == "" {
		return fmt.Errorf("billing.stripe_key is required when billing.mode is 'stripe'")
	}

	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	if cfg.Display.MarginMultiplier < 0 {
		return fmt.Errorf("display.margin_multiplier must not be negative")
	}

	if cfg.Currency.Secondary != "" && len(cfg.Currency.Secondary) != 3 {
		return fmt.Errorf("currency.secondary must be a 3-letter code, got %q", cfg.Currency.Secondary)
	}

	return nil
}
