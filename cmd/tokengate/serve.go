package main

import (
	"github.com/arvend/tokengate/bootstrap"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the billing gate API server",
	Long: `Start the TokenGate API server.

The server will:
  - Load configuration from tokengate.yaml (or --config)
  - Or load configuration from TOKENGATE_* environment variables
  - Open the snapshot database
  - Serve subscription checks, price lookups, and cost snapshots

Environment variables (for Docker deployments):
  TOKENGATE_BILLING_MODE       - Billing provider: stripe, dummy, none
  TOKENGATE_STRIPE_KEY         - Stripe secret key
  TOKENGATE_PRICING_BASE_URL   - Model price table endpoint
  TOKENGATE_DATABASE_DSN       - Snapshot database path (default: tokengate.db)
  TOKENGATE_SERVER_PORT        - Server port (default: 8080)
  TOKENGATE_LOG_LEVEL          - Log level: debug, info, warn, error

Examples:
  tokengate serve
  tokengate serve --config /etc/tokengate/config.yaml
  tokengate serve --hot-reload=false

  # Docker (env vars only):
  TOKENGATE_BILLING_MODE=stripe TOKENGATE_STRIPE_KEY=sk_... tokengate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath:  cfgFile,
		WatchConfig: hotReload,
	})
	if err != nil {
		return err
	}
	return app.Run()
}
