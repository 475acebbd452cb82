// Package store persists wallets, the wallet ledger, draws and bets through gorm.
package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrDuplicate is returned when a unique index rejects an insert
var ErrDuplicate = errors.New("duplicate row")

// translate maps unique violations to ErrDuplicate. Dialects without an
// error translator are recognised by their driver message.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
