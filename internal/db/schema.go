package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'staff' CHECK (role IN ('admin', 'staff')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
    ON users(email) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS profiles (
    user_id      INTEGER PRIMARY KEY REFERENCES users(id),
    nrc          TEXT NOT NULL DEFAULT '',
    phone        TEXT NOT NULL DEFAULT '',
    dob          TEXT NOT NULL DEFAULT '',
    gender       TEXT NOT NULL DEFAULT '',
    picture      BLOB,
    picture_mime TEXT,
    updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pawn_items (
    id               TEXT PRIMARY KEY,
    customer_name    TEXT NOT NULL,
    customer_phone   TEXT NOT NULL,
    customer_address TEXT NOT NULL,
    customer_nrc     TEXT NOT NULL,
    category         TEXT NOT NULL CHECK (category IN ('Phone', 'MotoBike', 'Bicycle', 'Watches', 'Others')),
    amount           REAL NOT NULL CHECK (amount > 0),
    pawn_date        TEXT NOT NULL,
    due_date         TEXT NOT NULL CHECK (due_date >= pawn_date),
    status           TEXT NOT NULL DEFAULT 'Active' CHECK (status IN ('Active', 'Expired', 'Redeemed', 'Inactive')),
    description      TEXT NOT NULL DEFAULT '',
    details          TEXT NOT NULL DEFAULT '{}',
    imei             TEXT,
    checked_out_at   DATETIME,
    checked_out_by   TEXT,
    created_by       INTEGER REFERENCES users(id),
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_pawn_items_category ON pawn_items(category);

CREATE TABLE IF NOT EXISTS otps (
    email       TEXT NOT NULL,
    purpose     TEXT NOT NULL CHECK (purpose IN ('signup', 'reset')),
    code_hash   TEXT NOT NULL,
    attempts    INTEGER NOT NULL DEFAULT 0,
    expires_at  DATETIME NOT NULL,
    verified_at DATETIME,
    PRIMARY KEY (email, purpose)
);

CREATE TABLE IF NOT EXISTS reset_tokens (
    token_hash TEXT PRIMARY KEY,
    email      TEXT NOT NULL,
    expires_at DATETIME NOT NULL,
    used_at    DATETIME
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist
// and applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return migrate(db)
}
