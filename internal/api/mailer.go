package api

import (
	"context"
	"log/slog"
)

// Mailer delivers one-time codes to users.
type Mailer interface {
	SendOTP(ctx context.Context, email, purpose, code string) error
}

// LogMailer writes codes to the log instead of sending mail. It is meant for
// local setups without an outgoing mail server.
type LogMailer struct{}

// SendOTP implements Mailer.
func (LogMailer) SendOTP(_ context.Context, email, purpose, code string) error {
	slog.Info("otp issued", "email", email, "purpose", purpose, "code", code)
	return nil
}
