package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: An IMEI may only belong to one item the shop still holds.
	// Redeemed and inactive items release their IMEI.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_pawn_items_imei_held
	     ON pawn_items(imei) WHERE imei IS NOT NULL AND status IN ('Active', 'Expired')`,
	// Migration 2: Reports filter and sort by due date.
	`CREATE INDEX IF NOT EXISTS idx_pawn_items_due_date ON pawn_items(due_date)`,
}

func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
