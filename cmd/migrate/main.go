package main

import (
	"lottery_system/internal/config" // Custom import path (Config)
	"lottery_system/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logging
)

// Main entry point for migration
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	db.Migrate(cfg.DSN())
}
