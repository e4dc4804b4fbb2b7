package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"

	"gopkg.in/gomail.v2"
)

const (
	NotificationVerificationCode = "verification_code"
	NotificationPasswordReset    = "password_reset"

	verificationSubject  = "Verify your email address"
	passwordResetSubject = "Password reset on %s"
)

type VerificationCodeNotification struct {
	UserID    uint
	Email     string
	FullName  string
	Code      string
	ExpiresAt time.Time
	ExpiresIn time.Duration
}

type PasswordResetNotification struct {
	UserID    uint
	Email     string
	FullName  string
	Link      string
	ExpiresAt time.Time
}

type Notifier interface {
	SendVerificationCode(ctx context.Context, n VerificationCodeNotification) error
	SendPasswordReset(ctx context.Context, n PasswordResetNotification) error
}

// MessageSender is the part of gomail.Dialer the SMTP notifier needs.
type MessageSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPNotifier struct {
	sender   MessageSender
	from     string
	siteName string
	logger   *slog.Logger
}

func NewSMTPNotifier(sender MessageSender, from, siteName string, logger *slog.Logger) *SMTPNotifier {
	if siteName == "" {
		siteName = "Fundraising Platform"
	}
	return &SMTPNotifier{sender: sender, from: from, siteName: siteName, logger: logger}
}

func NewSMTPDialer(host string, port int, username, password string) *gomail.Dialer {
	return gomail.NewDialer(host, port, username, password)
}

func (n *SMTPNotifier) SendVerificationCode(ctx context.Context, v VerificationCodeNotification) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", v.Email)
	m.SetHeader("Subject", verificationSubject)

	minutes := int(v.ExpiresIn.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	m.SetBody("text/plain", fmt.Sprintf(
		"Hello %s,\n\nYour verification code for %s is: %s\n\nThe code expires in %d minutes. If you did not create an account, ignore this email.\n",
		displayName(v.FullName, v.Email), n.siteName, v.Code, minutes,
	))
	m.AddAlternative("text/html", fmt.Sprintf(`
		<h2>Verify your email address</h2>
		<p>Hello %s,</p>
		<p>Your verification code for %s is:</p>
		<p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p>
		<p>The code expires in %d minutes.</p>
	`, html.EscapeString(displayName(v.FullName, v.Email)), html.EscapeString(n.siteName), v.Code, minutes))

	return n.send(ctx, NotificationVerificationCode, m)
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, p PasswordResetNotification) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", p.Email)
	m.SetHeader("Subject", fmt.Sprintf(passwordResetSubject, n.siteName))

	m.SetBody("text/plain", fmt.Sprintf(
		"Hello %s,\n\nWe received a request to reset the password for your %s account.\nOpen the link below to choose a new password:\n\n%s\n\nIf you did not request this change, you can ignore this email.\n",
		displayName(p.FullName, p.Email), n.siteName, p.Link,
	))
	m.AddAlternative("text/html", fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>We received a request to reset the password for your %s account.</p>
		<p><a href="%s">Choose a new password</a></p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, html.EscapeString(n.siteName), html.EscapeString(p.Link)))

	return n.send(ctx, NotificationPasswordReset, m)
}

func (n *SMTPNotifier) send(ctx context.Context, kind string, m *gomail.Message) error {
	start := time.Now()
	err := n.sender.DialAndSend(m)
	observability.RecordNotificationDuration(ctx, kind, time.Since(start))
	if err != nil {
		observability.RecordNotificationDelivery(ctx, kind, "smtp", "error")
		return &DeliveryError{Kind: kind, Err: err}
	}
	observability.RecordNotificationDelivery(ctx, kind, "smtp", "sent")
	return nil
}

// DevNotifier logs notifications instead of sending them. Codes and links are
// only logged when reveal is set.
type DevNotifier struct {
	logger *slog.Logger
	reveal bool
}

func NewDevNotifier(logger *slog.Logger, reveal bool) *DevNotifier {
	return &DevNotifier{logger: logger, reveal: reveal}
}

func (n *DevNotifier) SendVerificationCode(ctx context.Context, v VerificationCodeNotification) error {
	attrs := []any{
		"user_id", v.UserID,
		"email", v.Email,
		"expires_at", v.ExpiresAt,
	}
	if n.reveal {
		attrs = append(attrs, "code", v.Code)
	}
	n.logger.InfoContext(ctx, "verification code issued", attrs...)
	observability.RecordNotificationDelivery(ctx, NotificationVerificationCode, "log", "sent")
	return nil
}

func (n *DevNotifier) SendPasswordReset(ctx context.Context, p PasswordResetNotification) error {
	attrs := []any{
		"user_id", p.UserID,
		"email", p.Email,
		"expires_at", p.ExpiresAt,
	}
	if n.reveal {
		attrs = append(attrs, "reset", p.Link)
	}
	n.logger.InfoContext(ctx, "password reset link issued", attrs...)
	observability.RecordNotificationDelivery(ctx, NotificationPasswordReset, "log", "sent")
	return nil
}

func displayName(fullName, email string) string {
	if fullName != "" {
		return fullName
	}
	return email
}
