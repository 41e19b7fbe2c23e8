package store

import (
	"context"
	"testing"

	"github.com/erazemk/lombard/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// First call should generate a secret.
	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	// Second call should return the same secret.
	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestSettings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	v, err := GetSetting(ctx, database, "missing")
	if err != nil || v != "" {
		t.Fatalf("expected empty value, got %q, %v", v, err)
	}

	if err := SetSetting(ctx, database, "k", "one"); err != nil {
		t.Fatal(err)
	}
	if err := SetSetting(ctx, database, "k", "two"); err != nil {
		t.Fatal(err)
	}
	if v, _ := GetSetting(ctx, database, "k"); v != "two" {
		t.Errorf("expected overwritten value 'two', got %q", v)
	}
}

func TestGetCookieSecret_SeparateFromJWTSecret(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	jwtSecret, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	cookie1, err := GetCookieSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	cookie2, err := GetCookieSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if cookie1 != cookie2 {
		t.Errorf("cookie secret changed between calls")
	}
	if cookie1 == jwtSecret {
		t.Errorf("cookie secret must differ from the jwt secret")
	}
}
