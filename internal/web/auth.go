package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/session"
)

const (
	purposeSignup = "signup"
	purposeReset  = "reset"
)

// Account flow steps.
const (
	stepEmail   = "email"
	stepVerify  = "verify"
	stepDetails = "details"
	stepReset   = "reset"
)

type accountPage struct {
	PageData
	Step       string
	Email      string
	Name       string
	ResetToken string
}

func (s *Server) renderAccount(w http.ResponseWriter, r *http.Request, status int, tmpl, title string, ap accountPage, errMsg string) {
	ap.PageData = page(r, title)
	if errMsg != "" {
		ap.Flash = &Flash{Kind: "error", Title: "Error", Message: errMsg}
	}
	s.Templates.Render(w, status, tmpl, &ap)
}

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, http.StatusOK, "login.html", &struct {
		PageData
		Email string
	}{PageData: page(r, "Sign in")})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	render := func(status int, msg string) {
		pd := page(r, "Sign in")
		pd.Flash = &Flash{Kind: "error", Title: "Error", Message: msg}
		s.Templates.Render(w, status, "login.html", &struct {
			PageData
			Email string
		}{PageData: pd, Email: email})
	}

	if email == "" || password == "" {
		render(http.StatusUnprocessableEntity, "Enter your email and password.")
		return
	}

	ctx, done := s.start(r, "login")
	defer done()

	res, err := s.backend(r).Login(ctx, email, password)
	if err != nil {
		render(http.StatusUnauthorized, userMessage(err))
		return
	}

	st := stateFrom(r)
	if err := st.session.Begin(res.Token, res.User); err != nil {
		slog.Error("failed to begin session", "error", err)
		render(http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}
	slog.Info("console login", "user", res.User.Email)
	http.Redirect(w, r, st.session.TakeRedirect(session.LandingPath), http.StatusSeeOther)
}

// Logout handles POST /logout. The backend token is revoked on a best
// effort basis; the local session is always cleared.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	sid := st.store.ID()

	if st.session.IsAuthenticated() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.Timeout)
		if err := s.backend(r).Logout(ctx); err != nil {
			slog.Warn("failed to revoke token on logout", "error", err)
		}
		cancel()
	}

	if n := s.Tasks.CancelPrefix(sid + "/"); n > 0 {
		slog.Info("cancelled running operations on logout", "count", n)
	}
	s.forgetLists(sid)
	st.session.Teardown()
	st.notifier.Success("Signed out", "You have been signed out.", nil)
	http.Redirect(w, r, session.LoginPath, http.StatusSeeOther)
}

// SignupPage handles GET /signup.
func (s *Server) SignupPage(w http.ResponseWriter, r *http.Request) {
	s.renderAccount(w, r, http.StatusOK, "signup.html", "Create account", accountPage{Step: stepEmail}, "")
}

// SignupSendOTP handles POST /signup/send-otp.
func (s *Server) SignupSendOTP(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	ap := accountPage{Step: stepEmail, Email: email}
	if err := model.ValidateEmail(email); err != nil {
		s.renderAccount(w, r, http.StatusUnprocessableEntity, "signup.html", "Create account", ap, "Enter a valid email address.")
		return
	}

	ctx, done := s.start(r, "send-otp")
	defer done()
	if err := s.backend(r).SendOTP(ctx, email); err != nil {
		s.renderAccount(w, r, http.StatusBadRequest, "signup.html", "Create account", ap, userMessage(err))
		return
	}

	ap.Step = stepVerify
	stateFrom(r).notifier.Success("Code sent", "A verification code was sent to "+email+".", nil)
	s.renderAccount(w, r, http.StatusOK, "signup.html", "Create account", ap, "")
}

// SignupVerify handles POST /signup/verify.
func (s *Server) SignupVerify(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	otp := strings.TrimSpace(r.FormValue("otp"))
	ap := accountPage{Step: stepVerify, Email: email}

	ctx, done := s.start(r, "verify-otp")
	defer done()
	if _, err := s.backend(r).VerifyOTP(ctx, email, otp, purposeSignup); err != nil {
		s.renderAccount(w, r, http.StatusBadRequest, "signup.html", "Create account", ap, userMessage(err))
		return
	}

	ap.Step = stepDetails
	s.renderAccount(w, r, http.StatusOK, "signup.html", "Create account", ap, "")
}

// SignupSubmit handles POST /signup.
func (s *Server) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	ap := accountPage{Step: stepDetails, Email: email, Name: name}

	if msg := checkNewPassword(password, r.FormValue("confirm")); msg != "" {
		s.renderAccount(w, r, http.StatusUnprocessableEntity, "signup.html", "Create account", ap, msg)
		return
	}
	if name == "" {
		s.renderAccount(w, r, http.StatusUnprocessableEntity, "signup.html", "Create account", ap, "Enter your name.")
		return
	}

	ctx, done := s.start(r, "sign-up")
	defer done()
	res, err := s.backend(r).SignUp(ctx, name, email, password)
	if err != nil {
		s.renderAccount(w, r, http.StatusBadRequest, "signup.html", "Create account", ap, userMessage(err))
		return
	}

	st := stateFrom(r)
	if err := st.session.Begin(res.Token, res.User); err != nil {
		slog.Error("failed to begin session", "error", err)
		s.renderAccount(w, r, http.StatusInternalServerError, "signup.html", "Create account", ap, model.GenericErrorMessage)
		return
	}
	slog.Info("account created", "user", res.User.Email, "role", res.User.Role)
	st.notifier.Success("Welcome", "Your account has been created.", nil)
	http.Redirect(w, r, session.LandingPath, http.StatusSeeOther)
}

// ForgotPage handles GET /forgot-password.
func (s *Server) ForgotPage(w http.ResponseWriter, r *http.Request) {
	s.renderAccount(w, r, http.StatusOK, "forgot.html", "Reset password", accountPage{Step: stepEmail}, "")
}

// ForgotSubmit handles POST /forgot-password.
func (s *Server) ForgotSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	ap := accountPage{Step: stepEmail, Email: email}
	if err := model.ValidateEmail(email); err != nil {
		s.renderAccount(w, r, http.StatusUnprocessableEntity, "forgot.html", "Reset password", ap, "Enter a valid email address.")
		return
	}

	ctx, done := s.start(r, "forgot-password")
	defer done()
	if err := s.backend(r).ForgotPassword(ctx, email); err != nil {
		s.renderAccount(w, r, http.StatusBadRequest, "forgot.html", "Reset password", ap, userMessage(err))
		return
	}

	ap.Step = stepVerify
	stateFrom(r).notifier.Success("Check your inbox", "If the account exists, a code was sent to "+email+".", nil)
	s.renderAccount(w, r, http.StatusOK, "forgot.html", "Reset password", ap, "")
}

// ForgotVerify handles POST /forgot-password/verify.
func (s *Server) ForgotVerify(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	ap := accountPage{Step: stepVerify, Email: email}

	ctx, done := s.start(r, "verify-otp")
	defer done()
	token, err := s.backend(r).VerifyOTP(ctx, email, strings.TrimSpace(r.FormValue("otp")), purposeReset)
	if err != nil {
		s.renderAccount(w, r, http.StatusBadRequest, "forgot.html", "Reset password", ap, userMessage(err))
		return
	}

	ap.Step = stepReset
	ap.ResetToken = token
	s.renderAccount(w, r, http.StatusOK, "forgot.html", "Reset password", ap, "")
}

// ForgotReset handles POST /forgot-password/reset.
func (s *Server) ForgotReset(w http.ResponseWriter, r *http.Request) {
	ap := accountPage{Step: stepReset, Email: r.FormValue("email"), ResetToken: r.FormValue("resetToken")}
	password := r.FormValue("password")
	if msg := checkNewPassword(password, r.FormValue("confirm")); msg != "" {
		s.renderAccount(w, r, http.StatusUnprocessableEntity, "forgot.html", "Reset password", ap, msg)
		return
	}

	ctx, done := s.start(r, "reset-password")
	defer done()
	if err := s.backend(r).ResetPassword(ctx, ap.ResetToken, password); err != nil {
		s.renderAccount(w, r, http.StatusBadRequest, "forgot.html", "Reset password", ap, userMessage(err))
		return
	}

	stateFrom(r).notifier.Success("Password changed", "Sign in with your new password.", nil)
	http.Redirect(w, r, session.LoginPath, http.StatusSeeOther)
}

func checkNewPassword(password, confirm string) string {
	if err := model.ValidatePassword(password); err != nil {
		return fmt.Sprintf("Password must be at least %d characters.", model.MinPasswordLength)
	}
	if password != confirm {
		return "Passwords do not match."
	}
	return ""
}
