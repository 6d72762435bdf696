package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/arvend/tokengate/adapters/pricing"
	"github.com/arvend/tokengate/config"
	"github.com/arvend/tokengate/domain/currency"
	"github.com/spf13/cobra"
)

var ratesJSON bool

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Dump the current model price table",
	Long: `Fetch the model price table from the pricing upstream and print
per-token rates, scaled to USD per million tokens for readability.`,
	RunE: runRates,
}

func init() {
	rootCmd.AddCommand(ratesCmd)

	ratesCmd.Flags().BoolVar(&ratesJSON, "json", false, "print the raw price table as JSON")
}

func runRates(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client := pricing.NewClient(pricing.Config{
		BaseURL: cfg.Pricing.BaseURL,
		APIKey:  cfg.Pricing.APIKey,
		Timeout: cfg.Pricing.Timeout,
	})
	table, err := client.FetchRates(context.Background())
	if err != nil {
		return fmt.Errorf("fetch rates: %w", err)
	}

	if ratesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}

	models := make([]string, 0, len(table))
	for m := range table {
		models = append(models, m)
	}
	sort.Strings(models)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tINPUT $/1M\tOUTPUT $/1M\tREASONING $/1M\tMAX CONTEXT")
	for _, m := range models {
		r := table[m]
		reasoning := "-"
		if r.ReasoningPerToken != nil {
			reasoning = currency.FormatCost(*r.ReasoningPerToken * 1e6)
		}
		maxCtx := "-"
		if r.MaxContextTokens > 0 {
			maxCtx = currency.FormatTokens(r.MaxContextTokens)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m,
			currency.FormatCost(r.InputPerToken*1e6),
			currency.FormatCost(r.OutputPerToken*1e6),
			reasoning,
			maxCtx,
		)
	}
	return w.Flush()
}
