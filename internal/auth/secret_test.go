package auth

import (
	"regexp"
	"testing"
)

func TestGenerateOTP(t *testing.T) {
	digits := regexp.MustCompile(`^[0-9]{6}$`)
	for range 50 {
		code, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if !digits.MatchString(code) {
			t.Fatalf("expected 6 digits, got %q", code)
		}
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("expected wrong password to be rejected")
	}
}

func TestResetToken(t *testing.T) {
	token, hash, err := GenerateResetToken()
	if err != nil {
		t.Fatalf("GenerateResetToken: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token))
	}
	if HashToken(token) != hash {
		t.Error("hash does not match token")
	}
	if HashToken(token+"x") == hash {
		t.Error("different tokens must hash differently")
	}
}
