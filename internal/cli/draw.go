package cli

import (
	"fmt"
	"strings"
	"time"

	"lottery_system/internal/domain"
	"lottery_system/internal/scheduler"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(drawCmd)
	drawCmd.AddCommand(drawSeedCmd)
	drawCmd.AddCommand(drawCloseCmd)
	drawCmd.AddCommand(drawExecuteCmd)
	drawCmd.AddCommand(drawResultCmd)
	drawCmd.AddCommand(drawRepayCmd)

	runCmd.Flags().Duration("interval", time.Minute, "Time between ticks")
	for _, c := range []*cobra.Command{drawSeedCmd, drawCloseCmd, drawExecuteCmd} {
		c.Flags().StringP("group", "g", "", "Group A, B, C or D")
		_ = c.MarkFlagRequired("group")
	}
	drawResultCmd.Flags().Uint("draw", 0, "Draw id")
	drawResultCmd.Flags().Int("figure", 0, "Winning figure 1-36")
	_ = drawResultCmd.MarkFlagRequired("draw")
	_ = drawResultCmd.MarkFlagRequired("figure")
	drawRepayCmd.Flags().Uint("draw", 0, "Draw id")
	_ = drawRepayCmd.MarkFlagRequired("draw")
}

// ─── tick / run ─────────────────────────────────────────────────────────────

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one scheduler tick",
	Long:  `Close, seed, open, execute and pay draws that are due, once. Safe to retry.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := servicesFactory(cmd.Context())
		if err != nil {
			return err
		}
		res, err := s.Driver.Tick(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Tick on an interval until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		s, err := servicesFactory(cmd.Context())
		if err != nil {
			return err
		}
		return s.Driver.Run(cmd.Context(), interval)
	},
}

// ─── draw ───────────────────────────────────────────────────────────────────

var drawCmd = &cobra.Command{
	Use:   "draw",
	Short: "Drive a group's draw by hand",
	Long: `Manual draw operations skip the time gates the scheduler respects.
execute and result pay the winners in the same call.`,
}

var drawSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Make sure the group has a pending draw",
	Args:  cobra.NoArgs,
	RunE:  runDrawOp(scheduler.OpSeedNext),
}

var drawCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the group's current draw now",
	Args:  cobra.NoArgs,
	RunE:  runDrawOp(scheduler.OpCloseNow),
}

var drawExecuteCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute and pay the group's current draw now",
	Args:  cobra.NoArgs,
	RunE:  runDrawOp(scheduler.OpExecuteNow),
}

func runDrawOp(op string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("group")
		group, err := domain.ParseGroup(strings.ToUpper(raw))
		if err != nil {
			return fmt.Errorf("%q: %w", raw, err)
		}
		s, err := servicesFactory(cmd.Context())
		if err != nil {
			return err
		}
		res, err := s.Operator.Run(cmd.Context(), group, op)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if res.Payout != nil {
			return res.Payout.Err()
		}
		return nil
	}
}

var drawResultCmd = &cobra.Command{
	Use:   "result",
	Short: "Execute a draw with a chosen winning figure",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetUint("draw")
		figure, _ := cmd.Flags().GetInt("figure")
		s, err := servicesFactory(cmd.Context())
		if err != nil {
			return err
		}
		res, err := s.Operator.PostResult(cmd.Context(), id, figure)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return res.Payout.Err()
	},
}

var drawRepayCmd = &cobra.Command{
	Use:   "repay",
	Short: "Credit winners a failed payout left unpaid",
	Long:  `Pays every winning bet of an executed draw that has no win row yet. Bets already paid are skipped.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetUint("draw")
		s, err := servicesFactory(cmd.Context())
		if err != nil {
			return err
		}
		res, err := s.Operator.Repay(cmd.Context(), id)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return res.Payout.Err()
	},
}
