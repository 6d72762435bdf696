package main

import (
	"fmt"

	"github.com/arvend/tokengate/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration file (or TOKENGATE_* environment variables)
and check it for errors without starting the server.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("Configuration valid")
	fmt.Printf("  Billing mode:       %s\n", cfg.Billing.Mode)
	fmt.Printf("  Pricing upstream:   %s\n", cfg.Pricing.BaseURL)
	fmt.Printf("  Secondary currency: %s\n", cfg.Currency.Secondary)
	fmt.Printf("  Database:           %s (%s)\n", cfg.Database.Driver, cfg.Database.DSN)
	fmt.Printf("  Margin multiplier:  %.2f\n", cfg.Display.MarginMultiplier)
	return nil
}
