package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/lombard/internal/db"
	"github.com/erazemk/lombard/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "Aung Aung", " Aung@Example.com ", "hash123", model.RoleStaff)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "aung@example.com" {
		t.Errorf("expected normalized email, got %q", user.Email)
	}
	if user.Role != model.RoleStaff {
		t.Errorf("expected role 'staff', got %q", user.Role)
	}

	got, err := GetUserByEmail(ctx, database, "AUNG@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("expected user %d, got %+v", user.ID, got)
	}

	missing, err := GetUserByEmail(ctx, database, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "A", "a@example.com", "hash", model.RoleStaff); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateUser(ctx, database, "B", "A@example.com", "hash", model.RoleStaff); err == nil {
		t.Error("expected error for duplicate email")
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "A", "a@example.com", "old", model.RoleStaff)
	if err := UpdateUserPassword(ctx, database, "a@example.com", "new"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "new" {
		t.Errorf("expected new hash, got %q", got.PasswordHash)
	}

	err := UpdateUserPassword(ctx, database, "nobody@example.com", "x")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if n, _ := CountUsers(ctx, database); n != 1 {
		t.Errorf("expected 1 user, got %d", n)
	}
}
