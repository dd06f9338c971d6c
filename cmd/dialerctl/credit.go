package main

import (
	"errors"
	"fmt"

	"outbound-dialer/internal/credits"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var creditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Top up an account's call credits",
	Long:  "Credits an account either by pack price (--pack, in cents) or by an explicit --amount. --ref makes the top-up idempotent.",
	RunE:  runCredit,
}

var (
	creditAccountID string
	creditPackCents int64
	creditAmount    int64
	creditRef       string
)

var apiKeyCmd = &cobra.Command{
	Use:   "api-key",
	Short: "Set an account's telephony provider API key",
	RunE:  runAPIKey,
}

var (
	apiKeyAccountID string
	apiKeyValue     string
)

func init() {
	creditCmd.Flags().StringVar(&creditAccountID, "account", "", "Account id (required)")
	creditCmd.Flags().Int64Var(&creditPackCents, "pack", 0, "Pack price in cents: 2500, 10000 or 50000")
	creditCmd.Flags().Int64Var(&creditAmount, "amount", 0, "Explicit number of credits")
	creditCmd.Flags().StringVar(&creditRef, "ref", "", "Purchase reference; repeated refs are applied once")
	if err := creditCmd.MarkFlagRequired("account"); err != nil {
		panic(fmt.Sprintf("failed to mark account flag as required: %v", err))
	}
	creditCmd.MarkFlagsMutuallyExclusive("pack", "amount")

	apiKeyCmd.Flags().StringVar(&apiKeyAccountID, "account", "", "Account id (required)")
	apiKeyCmd.Flags().StringVar(&apiKeyValue, "key", "", "Provider API key (required)")
	for _, f := range []string{"account", "key"} {
		if err := apiKeyCmd.MarkFlagRequired(f); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", f, err))
		}
	}

	rootCmd.AddCommand(creditCmd, apiKeyCmd)
}

// creditAmountFor resolves the number of credits from --pack or --amount.
func creditAmountFor(packCents, amount int64) (int64, error) {
	switch {
	case packCents > 0:
		p, ok := credits.PackForAmount(packCents)
		if !ok {
			return 0, fmt.Errorf("no pack priced at %d cents", packCents)
		}
		return p.Credits, nil
	case amount > 0:
		return amount, nil
	default:
		return 0, errors.New("one of --pack or --amount is required")
	}
}

func runCredit(cmd *cobra.Command, _ []string) error {
	amount, err := creditAmountFor(creditPackCents, creditAmount)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	ref := creditRef
	if ref == "" {
		ref = "manual:" + uuid.NewString()
	}
	bal, err := a.Ledger.Credit(cmd.Context(), creditAccountID, amount, "purchase:"+ref, ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "account=%s credited=%d balance=%d\n", creditAccountID, amount, bal)
	return nil
}

func runAPIKey(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Ledger.SetTelephonyAPIKey(cmd.Context(), apiKeyAccountID, apiKeyValue); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "account=%s api key updated\n", apiKeyAccountID)
	return nil
}
