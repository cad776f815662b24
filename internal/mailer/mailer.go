// Package mailer is the seam for outbound mail. Actual SMTP delivery is out
// of scope; the log mailer writes the verification link to the server log so
// development flows can complete.
package mailer

import "log/slog"

// Mailer delivers account mail.
type Mailer interface {
	SendVerification(email, link string) error
}

// LogMailer logs instead of sending.
type LogMailer struct{}

// SendVerification logs the verification link for the operator to relay.
func (LogMailer) SendVerification(email, link string) error {
	slog.Info("Verification mail (log mailer)", "email", email, "link", link)
	return nil
}
