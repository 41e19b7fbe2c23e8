package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// OTPLength is the number of digits in a one-time code.
const OTPLength = 6

// OTPTTL is how long a one-time code stays valid.
const OTPTTL = 10 * time.Minute

// MaxOTPAttempts is the number of wrong guesses after which a code is void.
const MaxOTPAttempts = 5

// ResetTokenTTL is how long a password reset token stays valid.
const ResetTokenTTL = 15 * time.Minute

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateOTP returns a random numeric code of OTPLength digits.
func GenerateOTP() (string, error) {
	limit := big.NewInt(1)
	for range OTPLength {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n), nil
}

// GenerateResetToken returns a random opaque token and the hash under which
// it is stored.
func GenerateResetToken() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating reset token: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, HashToken(token), nil
}

// HashToken returns the SHA-256 hex digest used to look up opaque tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
