package cli

import (
	"fmt"
	"strings"

	"lottery_system/internal/domain"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletCreditCmd)
	walletCmd.AddCommand(walletReconcileCmd)

	walletCreditCmd.Flags().Uint("user", 0, "Wallet owner id")
	walletCreditCmd.Flags().Int64("delta", 0, "Signed points to apply")
	walletCreditCmd.Flags().String("note", "", "Reason recorded in the ledger")
	_ = walletCreditCmd.MarkFlagRequired("user")
	_ = walletCreditCmd.MarkFlagRequired("delta")
	_ = walletCreditCmd.MarkFlagRequired("note")

	walletReconcileCmd.Flags().Uint("user", 0, "Wallet owner id")
	_ = walletReconcileCmd.MarkFlagRequired("user")
}

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Adjust and audit wallets",
}

var walletCreditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Apply a signed adjustment to a wallet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetUint("user")
		delta, _ := cmd.Flags().GetInt64("delta")
		note, _ := cmd.Flags().GetString("note")
		if strings.TrimSpace(note) == "" {
			return domain.ErrInvalidNote
		}
		s, err := servicesFactory(cmd.Context())
		if err != nil {
			return err
		}
		balance, err := s.Ledger.AdjustBalance(cmd.Context(), userID, delta, "cli:"+strings.TrimSpace(note))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"user_id": userID, "balance": balance})
	},
}

var walletReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare a wallet balance with the sum of its ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetUint("user")
		s, err := servicesFactory(cmd.Context())
		if err != nil {
			return err
		}
		r, err := s.Ledger.Reconcile(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), r); err != nil {
			return err
		}
		if !r.Consistent() {
			return fmt.Errorf("wallet %d drifted by %d points", userID, r.Drift)
		}
		return nil
	},
}
