package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tokengate",
	Short: "Subscription gate and token cost accounting for AI chat backends",
	Long: `TokenGate sits next to an AI chat application and answers two
questions: may this user talk to the models, and what did that
message cost.

It verifies subscriptions against the billing provider, hands out
checkout links for remediation, prices token usage from a live model
price table, and persists a per-message cost snapshot so historical
costs survive price changes.

Quick start:
  tokengate serve      # Start the API server
  tokengate check      # Check one user's subscription standing
  tokengate rates      # Dump the current model price table
  tokengate validate   # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "tokengate.yaml", "config file path")
}
