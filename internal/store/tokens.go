package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RevokeToken adds a token's JTI to the revocation list.
func RevokeToken(ctx context.Context, db *sql.DB, jti string, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func IsTokenRevoked(ctx context.Context, db *sql.DB, jti string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return count > 0, nil
}

// PurgeExpired deletes revocations, codes and reset tokens that can no
// longer be used and returns how many rows went.
func PurgeExpired(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	var total int64
	for _, q := range []string{
		`DELETE FROM revoked_tokens WHERE expires_at < ?`,
		`DELETE FROM otps WHERE expires_at < ?`,
		`DELETE FROM reset_tokens WHERE expires_at < ?`,
	} {
		result, err := db.ExecContext(ctx, q, now.UTC())
		if err != nil {
			return total, fmt.Errorf("purging expired rows: %w", err)
		}
		n, _ := result.RowsAffected()
		total += n
	}
	return total, nil
}
