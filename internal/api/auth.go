package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/lombard/internal/auth"
	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
	Mailer    Mailer
	Limiter   *OTPLimiter
	Now       func() time.Time
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginData is returned by login and sign-up.
type LoginData struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type otpRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	OTP     string `json:"otp"`
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetPasswordRequest struct {
	ResetToken string `json:"resetToken"`
	Password   string `json:"password"`
}

func (h *AuthHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, status int, message string, user *model.User) {
	token, err := auth.GenerateToken(h.JWTSecret, user.ID, user.Email, user.Name, user.Role)
	if err != nil {
		slog.Error("generating token", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	respond(w, r, status, message, LoginData{Token: token, User: user})
}

// Login handles POST /auth/user/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		fail(w, r, http.StatusBadRequest, "Email and password required")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, req.Email)
	if err != nil {
		slog.Error("login lookup", "error", err)
		fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		fail(w, r, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	slog.Info("user logged in", "user", user.Email, "role", user.Role)
	h.issue(w, r, http.StatusOK, "Login successful", user)
}

// sendCode generates, stores and delivers a code. It writes the response on
// failure and reports whether the caller should continue.
func (h *AuthHandler) sendCode(w http.ResponseWriter, r *http.Request, email, purpose string) bool {
	if ok, wait := h.Limiter.Allow(email, clientIP(r)); !ok {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(wait.Seconds())+1))
		fail(w, r, http.StatusTooManyRequests, "Too many OTP requests, please try again later")
		return false
	}

	code, err := auth.GenerateOTP()
	if err == nil {
		var hash string
		if hash, err = auth.HashPassword(code); err == nil {
			err = store.SaveOTP(r.Context(), h.DB, email, purpose, hash, h.now().Add(auth.OTPTTL))
		}
	}
	if err == nil {
		err = h.Mailer.SendOTP(r.Context(), email, purpose, code)
	}
	if err != nil {
		slog.Error("sending otp", "email", email, "purpose", purpose, "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to send OTP")
		return false
	}
	return true
}

// SendOTP handles POST /auth/user/send-otp. It starts the sign-up flow.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := normalizeEmail(req.Email)
	if err := model.ValidateEmail(email); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid email address")
		return
	}

	existing, err := store.GetUserByEmail(r.Context(), h.DB, email)
	if err != nil {
		slog.Error("otp user lookup", "error", err)
		fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}
	if existing != nil {
		fail(w, r, http.StatusConflict, "Email already registered")
		return
	}

	if !h.sendCode(w, r, email, store.PurposeSignup) {
		return
	}
	respond(w, r, http.StatusOK, "OTP sent", nil)
}

// ForgotPassword handles POST /auth/user/forgot-password. The answer is the
// same whether or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := normalizeEmail(req.Email)
	if err := model.ValidateEmail(email); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid email address")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, email)
	if err != nil {
		slog.Error("forgot password lookup", "error", err)
		fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}
	if user != nil && !h.sendCode(w, r, email, store.PurposeReset) {
		return
	}
	respond(w, r, http.StatusOK, "If the account exists, an OTP has been sent", nil)
}

// VerifyOTP handles POST /auth/user/verify-otp. A verified sign-up code
// unlocks sign-up; a verified reset code is exchanged for a reset token.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := normalizeEmail(req.Email)
	purpose := req.Purpose
	if purpose == "" {
		purpose = store.PurposeSignup
	}
	if purpose != store.PurposeSignup && purpose != store.PurposeReset {
		fail(w, r, http.StatusBadRequest, "Invalid purpose")
		return
	}

	ctx := r.Context()
	now := h.now()
	otp, err := store.GetOTP(ctx, h.DB, email, purpose)
	if err != nil {
		slog.Error("otp lookup", "error", err)
		fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}
	if otp == nil || !now.Before(otp.ExpiresAt) {
		fail(w, r, http.StatusBadRequest, "OTP expired or not found")
		return
	}
	if otp.Attempts >= auth.MaxOTPAttempts {
		fail(w, r, http.StatusTooManyRequests, "Too many attempts, please request a new OTP")
		return
	}
	if !auth.CheckPassword(otp.CodeHash, strings.TrimSpace(req.OTP)) {
		if err := store.RecordOTPAttempt(ctx, h.DB, email, purpose); err != nil {
			slog.Error("recording otp attempt", "error", err)
		}
		fail(w, r, http.StatusBadRequest, "Invalid OTP")
		return
	}

	if purpose == store.PurposeSignup {
		if err := store.MarkOTPVerified(ctx, h.DB, email, purpose, now); err != nil {
			slog.Error("marking otp verified", "error", err)
			fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
			return
		}
		respond(w, r, http.StatusOK, "OTP verified", map[string]bool{"verified": true})
		return
	}

	token, hash, err := auth.GenerateResetToken()
	if err == nil {
		err = store.CreateResetToken(ctx, h.DB, hash, email, now.Add(auth.ResetTokenTTL))
	}
	if err == nil {
		err = store.DeleteOTP(ctx, h.DB, email, purpose)
	}
	if err != nil {
		slog.Error("issuing reset token", "error", err)
		fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}
	respond(w, r, http.StatusOK, "OTP verified", map[string]string{"resetToken": token})
}

// SignUp handles POST /auth/user/sign-up. It requires a verified sign-up
// code for the address. The very first account becomes an admin.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		fail(w, r, http.StatusBadRequest, "Name required")
		return
	case model.ValidateEmail(email) != nil:
		fail(w, r, http.StatusBadRequest, "Invalid email address")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		fail(w, r, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	ctx := r.Context()
	otp, err := store.GetOTP(ctx, h.DB, email, store.PurposeSignup)
	if err != nil {
		slog.Error("sign-up otp lookup", "error", err)
		fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}
	if otp == nil || otp.VerifiedAt == nil || !h.now().Before(otp.ExpiresAt) {
		fail(w, r, http.StatusBadRequest, "Email not verified")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	role := model.RoleStaff
	if n, err := store.CountUsers(ctx, h.DB); err == nil && n == 0 {
		role = model.RoleAdmin
	}

	user, err := store.CreateUser(ctx, h.DB, name, email, hash, role)
	if err != nil {
		slog.Error("creating user", "email", email, "error", err)
		fail(w, r, http.StatusConflict, "Email already registered")
		return
	}
	if err := store.DeleteOTP(ctx, h.DB, email, store.PurposeSignup); err != nil {
		slog.Error("deleting otp", "error", err)
	}

	slog.Info("user signed up", "user", user.Email, "role", user.Role)
	h.issue(w, r, http.StatusCreated, "Account created", user)
}

// ResetPassword handles POST /auth/user/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		fail(w, r, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	ctx := r.Context()
	email, err := store.ConsumeResetToken(ctx, h.DB, auth.HashToken(req.ResetToken), h.now())
	if errors.Is(err, store.ErrNotFound) {
		fail(w, r, http.StatusBadRequest, "Reset link is invalid or has expired")
		return
	}
	if err != nil {
		slog.Error("consuming reset token", "error", err)
		fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		fail(w, r, http.StatusInternalServerError, "Failed to hash password")
		return
	}
	if err := store.UpdateUserPassword(ctx, h.DB, email, hash); err != nil {
		slog.Error("updating password", "email", email, "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to update password")
		return
	}

	slog.Info("password reset", "user", email)
	respond(w, r, http.StatusOK, "Password updated", nil)
}

// Logout handles POST /auth/user/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		fail(w, r, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		slog.Error("revoking token", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to log out")
		return
	}

	slog.Info("user logged out", "user", claims.Email)
	respond(w, r, http.StatusOK, "Logged out", nil)
}
