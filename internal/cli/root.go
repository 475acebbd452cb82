// Package cli implements lotteryctl, the operator command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"lottery_system/internal/app"
	"lottery_system/internal/config"
	"lottery_system/internal/db"
	"lottery_system/internal/utils"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// servicesFactory builds the services a command runs against. Tests swap it.
var servicesFactory = openServices

var rootCmd = &cobra.Command{
	Use:   "lotteryctl",
	Short: "Operate the points lottery",
	Long: `lotteryctl drives draws and wallets against the same database as the
HTTP server. It reads the server's environment (.env is honoured). Every
command is safe to repeat: transitions only move forward and payouts are
applied once per bet.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("verbose"); !v {
			logrus.SetLevel(logrus.WarnLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log every state change")
}

// Execute runs the root command until ctx is cancelled
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func openServices(ctx context.Context) (*app.Services, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Open(cfg.DSN())
	if err != nil {
		return nil, err
	}
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Balances still change correctly; cached views expire on their own
			logrus.WithError(err).Warn("Redis unreachable, cache invalidation disabled")
			rdb = nil
		}
	}
	return app.New(gdb, rdb, cfg, utils.SystemClock{}), nil
}

// printJSON writes v indented to the command's output
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
