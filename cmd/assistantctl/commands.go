package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newWarmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Load every dataset and report row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			empty := a.cache.Warm(cmd.Context())
			out := cmd.OutOrStdout()
			for _, st := range a.cache.Stats() {
				if _, err := fmt.Fprintf(out, "%-20s %8d\n", st.Name, st.Rows); err != nil {
					return err
				}
			}
			if len(empty) > 0 {
				_, err := fmt.Fprintf(out, "unavailable: %s\n", strings.Join(empty, ", "))
				return err
			}
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load every dataset and print slot statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.cache.Warm(cmd.Context())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(a.cache.Stats())
		},
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <tax-id>",
		Short: "Look a customer up by tax id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLine(cmd, a.tools.VerifyCustomer(cmd.Context(), args[0]))
		},
	}
}

func newAccountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "account <tax-id> <customer-code>",
		Short: "Report the open balance of a customer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLine(cmd, a.tools.AccountStatus(cmd.Context(), args[0], args[1]))
		},
	}
}

func newStockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stock <product>",
		Short: "Report units per store for a product",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLine(cmd, a.tools.StockLookup(cmd.Context(), strings.Join(args, " ")))
		},
	}
}

func newPriceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "price <product>",
		Short: "Report the list price of a product",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLine(cmd, a.tools.PriceLookup(cmd.Context(), strings.Join(args, " ")))
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <tax-id> <customer-code>",
		Short: "Summarize the recent purchases of a customer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printLine(cmd, a.tools.PurchaseHistory(cmd.Context(), args[0], args[1]))
		},
	}
}

func printLine(cmd *cobra.Command, s string) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), s)
	return err
}
