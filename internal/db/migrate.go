package db

import (
	"fmt" // Error wrapping

	"lottery_system/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"

	"gorm.io/driver/mysql" // MySQL driver for GORM
	"gorm.io/gorm"         // GORM ORM library
)

// Models lists every table owned by the service
func Models() []any {
	return []any{&domain.User{}, &domain.Wallet{}, &domain.WalletTxn{}, &domain.Draw{}, &domain.Bet{}}
}

// GormConfig is shared by every dialect the service runs on. Wallets are
// created lazily for identities verified upstream, so no foreign key ties
// them to the users table.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError:                           true, // Surface unique violations as gorm.ErrDuplicatedKey
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// Open connects to MySQL with driver errors translated to gorm sentinels
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// AutoMigrate creates tables, missing foreign keys, constraints, columns and indexes
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// Migrate performs automatic migration for the database schema
func Migrate(dsn string) {
	db, err := Open(dsn) // Open a connection to the database
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err) // Log fatal error if connection fails
	}
	if err := AutoMigrate(db); err != nil {
		logrus.Fatalf("migration failed: %v", err) // Log fatal error if migration fails
	}
	logrus.Info("Migration completed.") // Log successful migration
}
