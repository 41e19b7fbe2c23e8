package model

import (
	"fmt"
	"net/mail"
	"time"
)

// User is a console account.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 2,
		RoleStaff: 1,
	}
	return levels[minimum] > 0 && levels[role] >= levels[minimum]
}

// MinPasswordLength is the shortest password accepted on signup or reset.
const MinPasswordLength = 8

// ValidatePassword checks password strength rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateEmail checks that s is a bare e-mail address.
func ValidateEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// Genders.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Profile holds the personal details of a user.
type Profile struct {
	UserID     int64     `json:"userid"`
	Name       string    `json:"name"`
	NRC        string    `json:"nrc"`
	Phone      string    `json:"phone"`
	DOB        Date      `json:"dob"`
	Gender     string    `json:"gender"`
	Email      string    `json:"email,omitempty"`
	HasPicture bool      `json:"hasPicture"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Validate checks profile fields that are set.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name required")
	}
	if p.NRC != "" && !ValidNRC(p.NRC) {
		return fmt.Errorf("invalid NRC")
	}
	if p.Phone != "" && !ValidPhone(p.Phone) {
		return fmt.Errorf("invalid phone number")
	}
	switch p.Gender {
	case "", GenderMale, GenderFemale, GenderOther:
	default:
		return fmt.Errorf("invalid gender")
	}
	return nil
}
