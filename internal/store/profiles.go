package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/lombard/internal/model"
)

// GetProfile returns the profile of a user. Users who never saved a profile
// get one holding only their name and email.
func GetProfile(ctx context.Context, db *sql.DB, userID int64) (*model.Profile, error) {
	p := &model.Profile{UserID: userID}
	var (
		nrc, phone, dob, gender sql.NullString
		hasPicture              sql.NullBool
		updatedAt               *time.Time
	)
	err := db.QueryRowContext(ctx,
		`SELECT u.name, u.email, p.nrc, p.phone, p.dob, p.gender,
		        p.picture IS NOT NULL, p.updated_at
		 FROM users u LEFT JOIN profiles p ON p.user_id = u.id
		 WHERE u.id = ? AND u.deleted_at IS NULL`, userID,
	).Scan(&p.Name, &p.Email, &nrc, &phone, &dob, &gender, &hasPicture, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	p.NRC = nrc.String
	p.Phone = phone.String
	p.Gender = gender.String
	p.HasPicture = hasPicture.Bool
	if updatedAt != nil {
		p.UpdatedAt = *updatedAt
	}
	if p.DOB, err = model.ParseDate(dob.String); err != nil {
		return nil, err
	}
	return p, nil
}

// SaveProfile stores the personal details of p.UserID and renames the user.
func SaveProfile(ctx context.Context, db *sql.DB, p model.Profile) (*model.Profile, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET name = ? WHERE id = ? AND deleted_at IS NULL`, p.Name, p.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating profile name: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (user_id, nrc, phone, dob, gender, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_id) DO UPDATE SET nrc = excluded.nrc, phone = excluded.phone,
		     dob = excluded.dob, gender = excluded.gender, updated_at = CURRENT_TIMESTAMP`,
		p.UserID, p.NRC, p.Phone, p.DOB.String(), p.Gender,
	)
	if err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing profile: %w", err)
	}
	return GetProfile(ctx, db, p.UserID)
}

// SetProfilePicture stores a processed picture for a user.
func SetProfilePicture(ctx context.Context, db *sql.DB, userID int64, data []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, picture, picture_mime, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_id) DO UPDATE SET picture = excluded.picture,
		     picture_mime = excluded.picture_mime, updated_at = CURRENT_TIMESTAMP`,
		userID, data, mime,
	)
	if err != nil {
		return fmt.Errorf("setting profile picture: %w", err)
	}
	return nil
}

// GetProfilePicture returns a user's picture and its MIME type.
func GetProfilePicture(ctx context.Context, db *sql.DB, userID int64) ([]byte, string, error) {
	var data []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT picture, picture_mime FROM profiles WHERE user_id = ?`, userID,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting profile picture: %w", err)
	}
	return data, mime.String, nil
}
