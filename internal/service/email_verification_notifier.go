package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

type VerificationNotification struct {
	IdentityID string
	Email      string
	Token      string
	ExpiresAt  time.Time
	RedirectTo string
}

// Link is the URL the email would carry. Without a redirect target only
// the token query is returned.
func (n VerificationNotification) Link(kind string) string {
	q := url.Values{}
	q.Set("type", kind)
	q.Set("email", n.Email)
	q.Set("token", n.Token)
	base := strings.TrimSpace(n.RedirectTo)
	if base == "" {
		return q.Encode()
	}
	if strings.Contains(base, "?") {
		return base + "&" + q.Encode()
	}
	return base + "?" + q.Encode()
}

type EmailVerificationNotifier interface {
	SendSignupConfirmation(ctx context.Context, notification VerificationNotification) error
}

type PasswordResetNotifier interface {
	SendPasswordReset(ctx context.Context, notification VerificationNotification) error
}

type Notifier interface {
	EmailVerificationNotifier
	PasswordResetNotifier
}

// DevNotifier writes emails to the log instead of sending them.
type DevNotifier struct {
	logger *slog.Logger
}

func NewDevNotifier(logger *slog.Logger) *DevNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DevNotifier{logger: logger}
}

func (n *DevNotifier) SendSignupConfirmation(ctx context.Context, notification VerificationNotification) error {
	n.logger.InfoContext(ctx, "signup confirmation token issued",
		"identity_id", notification.IdentityID,
		"email", notification.Email,
		"expires_at", notification.ExpiresAt,
		"confirmation", notification.Link("signup"),
	)
	return nil
}

func (n *DevNotifier) SendPasswordReset(ctx context.Context, notification VerificationNotification) error {
	n.logger.InfoContext(ctx, "password reset token issued",
		"identity_id", notification.IdentityID,
		"email", notification.Email,
		"expires_at", notification.ExpiresAt,
		"reset", notification.Link("recovery"),
	)
	return nil
}
