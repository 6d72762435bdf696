package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/arvend/tokengate/adapters/clock"
	"github.com/arvend/tokengate/adapters/payment"
	"github.com/arvend/tokengate/app"
	"github.com/arvend/tokengate/config"
	"github.com/arvend/tokengate/domain/access"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check <email>",
	Short: "Check one user's subscription standing",
	Long: `Run the full eligibility chain for an email address against the
configured billing provider and print the decision.

Useful for support: it shows exactly what the gate sees, including
the denial reason and the checkout link a blocked user would get.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the raw check result as JSON")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	provider, err := payment.NewProvider(cfg.Billing)
	if err != nil {
		return fmt.Errorf("init billing provider: %w", err)
	}

	svc := app.NewAccessService(provider, clock.Real{}, zerolog.Nop(), nil, app.AccessServiceConfig{
		Timeout:          cfg.Billing.Timeout,
		WhitelistEmails:  cfg.Billing.WhitelistEmails,
		WhitelistUserIDs: cfg.Billing.WhitelistUserIDs,
	})

	res := svc.Check(context.Background(), access.Identity{Email: args[0]})

	if checkJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	switch {
	case res.Error:
		fmt.Printf("ERROR    %s\n", res.ErrorMessage)
		fmt.Println("         provider unreachable, access denied")
	case res.Whitelisted:
		fmt.Println("GRANTED  whitelisted")
	case res.HasSubscription:
		fmt.Printf("GRANTED  subscription %s (%s), renews %s\n",
			res.Subscription.ID, res.Subscription.Status,
			res.Subscription.CurrentPeriodEnd.Format("2006-01-02"))
	default:
		fmt.Printf("DENIED   %s\n", res.Reason)
		if res.CheckoutURL != "" {
			fmt.Printf("         checkout: %s\n", res.CheckoutURL)
		}
	}
	return nil
}
