package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// OTP purposes.
const (
	PurposeSignup = "signup"
	PurposeReset  = "reset"
)

// OTP is a one-time code sent to an email address.
type OTP struct {
	Email      string
	Purpose    string
	CodeHash   string
	Attempts   int
	ExpiresAt  time.Time
	VerifiedAt *time.Time
}

// SaveOTP stores a new code for email and purpose, replacing any earlier one.
func SaveOTP(ctx context.Context, db *sql.DB, email, purpose, codeHash string, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO otps (email, purpose, code_hash, attempts, expires_at, verified_at)
		 VALUES (?, ?, ?, 0, ?, NULL)
		 ON CONFLICT (email, purpose) DO UPDATE SET code_hash = excluded.code_hash,
		     attempts = 0, expires_at = excluded.expires_at, verified_at = NULL`,
		normalizeEmail(email), purpose, codeHash, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving otp: %w", err)
	}
	return nil
}

// GetOTP returns the current code for email and purpose.
func GetOTP(ctx context.Context, db *sql.DB, email, purpose string) (*OTP, error) {
	o := &OTP{}
	err := db.QueryRowContext(ctx,
		`SELECT email, purpose, code_hash, attempts, expires_at, verified_at
		 FROM otps WHERE email = ? AND purpose = ?`, normalizeEmail(email), purpose,
	).Scan(&o.Email, &o.Purpose, &o.CodeHash, &o.Attempts, &o.ExpiresAt, &o.VerifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting otp: %w", err)
	}
	return o, nil
}

// RecordOTPAttempt counts a failed verification.
func RecordOTPAttempt(ctx context.Context, db *sql.DB, email, purpose string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE otps SET attempts = attempts + 1 WHERE email = ? AND purpose = ?`,
		normalizeEmail(email), purpose,
	)
	if err != nil {
		return fmt.Errorf("recording otp attempt: %w", err)
	}
	return nil
}

// MarkOTPVerified records a successful verification.
func MarkOTPVerified(ctx context.Context, db *sql.DB, email, purpose string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE otps SET verified_at = ? WHERE email = ? AND purpose = ?`,
		at.UTC(), normalizeEmail(email), purpose,
	)
	if err != nil {
		return fmt.Errorf("marking otp verified: %w", err)
	}
	return nil
}

// DeleteOTP removes the code for email and purpose.
func DeleteOTP(ctx context.Context, db *sql.DB, email, purpose string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM otps WHERE email = ? AND purpose = ?`, normalizeEmail(email), purpose,
	)
	if err != nil {
		return fmt.Errorf("deleting otp: %w", err)
	}
	return nil
}

// CreateResetToken stores the hash of a password reset token.
func CreateResetToken(ctx context.Context, db *sql.DB, tokenHash, email string, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO reset_tokens (token_hash, email, expires_at) VALUES (?, ?, ?)`,
		tokenHash, normalizeEmail(email), expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken marks an unused, unexpired token as used and returns
// the email it was issued for. It returns ErrNotFound otherwise.
func ConsumeResetToken(ctx context.Context, db *sql.DB, tokenHash string, now time.Time) (string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var email string
	var expiresAt time.Time
	var usedAt *time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT email, expires_at, used_at FROM reset_tokens WHERE token_hash = ?`, tokenHash,
	).Scan(&email, &expiresAt, &usedAt)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting reset token: %w", err)
	}
	if usedAt != nil || !now.Before(expiresAt) {
		return "", ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE reset_tokens SET used_at = ? WHERE token_hash = ?`, now.UTC(), tokenHash,
	); err != nil {
		return "", fmt.Errorf("consuming reset token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing reset token: %w", err)
	}
	return email, nil
}
