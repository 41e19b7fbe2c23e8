package store

import (
	"context"
	"testing"

	"github.com/erazemk/lombard/internal/db"
	"github.com/erazemk/lombard/internal/model"
)

func TestProfileDefaultsAndSave(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "Su Su", "su@example.com", "hash", model.RoleStaff)

	p, err := GetProfile(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Name != "Su Su" || p.Email != "su@example.com" || p.HasPicture {
		t.Errorf("unexpected default profile %+v", p)
	}

	p.Name = "Su Su Hlaing"
	p.Phone = "09123456789"
	p.DOB = model.NewDate(1995, 4, 1)
	p.Gender = model.GenderFemale
	saved, err := SaveProfile(ctx, database, *p)
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if saved.Name != "Su Su Hlaing" || saved.Phone != "09123456789" || !saved.DOB.Equal(model.NewDate(1995, 4, 1)) {
		t.Errorf("unexpected saved profile %+v", saved)
	}

	if missing, _ := GetProfile(ctx, database, 999); missing != nil {
		t.Error("expected nil profile for unknown user")
	}
}

func TestProfilePicture(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "Su Su", "su@example.com", "hash", model.RoleStaff)

	data, _, err := GetProfilePicture(ctx, database, user.ID)
	if err != nil || data != nil {
		t.Fatalf("expected no picture, got %d bytes, %v", len(data), err)
	}

	if err := SetProfilePicture(ctx, database, user.ID, []byte{0xff, 0xd8}, "image/jpeg"); err != nil {
		t.Fatalf("SetProfilePicture: %v", err)
	}
	data, mime, err := GetProfilePicture(ctx, database, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2 || mime != "image/jpeg" {
		t.Errorf("unexpected picture %v %q", data, mime)
	}

	p, _ := GetProfile(ctx, database, user.ID)
	if !p.HasPicture {
		t.Error("expected HasPicture after upload")
	}
}
