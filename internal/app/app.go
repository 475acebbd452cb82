// Package app wires the stores and engines shared by the server and the CLI.
package app

import (
	"lottery_system/internal/betting"
	"lottery_system/internal/config"
	"lottery_system/internal/draw"
	"lottery_system/internal/ledger"
	"lottery_system/internal/payout"
	"lottery_system/internal/scheduler"
	"lottery_system/internal/store"
	"lottery_system/internal/utils"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services holds every component built on one database handle
type Services struct {
	DB       *gorm.DB
	Redis    *redis.Client // nil when running without a cache
	Config   *config.Config
	Clock    utils.Clock
	Wallets  *store.WalletStore
	Draws    *store.DrawStore
	Bets     *store.BetStore
	Ledger   *ledger.Manager
	Betting  *betting.Engine
	Machine  *draw.Machine
	Payouts  *payout.Executor
	Driver   *scheduler.Driver
	Operator *scheduler.Operator
}

// New builds the services. rdb may be nil; machineOpts are passed to the draw machine.
func New(db *gorm.DB, rdb *redis.Client, cfg *config.Config, clock utils.Clock, machineOpts ...draw.Option) *Services {
	var cache ledger.BalanceCache = utils.NopBalanceCache{}
	if rdb != nil {
		cache = utils.NewRedisBalanceCache(rdb)
	}
	rules := cfg.Lottery

	s := &Services{
		DB:      db,
		Redis:   rdb,
		Config:  cfg,
		Clock:   clock,
		Wallets: store.NewWalletStore(db),
		Draws:   store.NewDrawStore(db),
		Bets:    store.NewBetStore(db),
	}
	s.Ledger = ledger.NewManager(s.Wallets, cache)
	s.Betting = betting.NewEngine(s.Draws, s.Bets, s.Ledger, rules, clock)
	s.Machine = draw.NewMachine(s.Draws, rules, clock, machineOpts...)
	s.Payouts = payout.NewExecutor(s.Draws, s.Bets, s.Wallets, s.Ledger, rules)
	s.Driver = scheduler.NewDriver(s.Draws, s.Machine, s.Payouts, rules, clock)
	s.Operator = scheduler.NewOperator(s.Machine, s.Payouts)
	return s
}
