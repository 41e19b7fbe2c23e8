package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/lombard/internal/db"
)

func TestOTPLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := SaveOTP(ctx, database, "A@example.com", PurposeSignup, "h1", now.Add(10*time.Minute)); err != nil {
		t.Fatalf("SaveOTP: %v", err)
	}
	RecordOTPAttempt(ctx, database, "a@example.com", PurposeSignup)

	o, err := GetOTP(ctx, database, "a@example.com", PurposeSignup)
	if err != nil || o == nil {
		t.Fatalf("GetOTP: %v, %v", o, err)
	}
	if o.Attempts != 1 || o.VerifiedAt != nil {
		t.Errorf("unexpected otp state %+v", o)
	}

	// A new code resets attempts.
	SaveOTP(ctx, database, "a@example.com", PurposeSignup, "h2", now.Add(10*time.Minute))
	MarkOTPVerified(ctx, database, "a@example.com", PurposeSignup, now)
	o, _ = GetOTP(ctx, database, "a@example.com", PurposeSignup)
	if o.CodeHash != "h2" || o.Attempts != 0 || o.VerifiedAt == nil {
		t.Errorf("unexpected otp state %+v", o)
	}

	if other, _ := GetOTP(ctx, database, "a@example.com", PurposeReset); other != nil {
		t.Error("codes must be kept per purpose")
	}

	DeleteOTP(ctx, database, "a@example.com", PurposeSignup)
	if o, _ := GetOTP(ctx, database, "a@example.com", PurposeSignup); o != nil {
		t.Error("expected otp to be deleted")
	}
}

func TestResetTokenSingleUse(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	CreateResetToken(ctx, database, "tok", "a@example.com", now.Add(time.Hour))

	email, err := ConsumeResetToken(ctx, database, "tok", now)
	if err != nil || email != "a@example.com" {
		t.Fatalf("ConsumeResetToken: %q, %v", email, err)
	}
	if _, err := ConsumeResetToken(ctx, database, "tok", now); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for reused token, got %v", err)
	}

	CreateResetToken(ctx, database, "old", "a@example.com", now.Add(-time.Minute))
	if _, err := ConsumeResetToken(ctx, database, "old", now); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}
