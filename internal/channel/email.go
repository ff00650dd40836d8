package channel

import (
	"context"
	"log/slog"

	"github.com/notify-gateway/internal/domain"
	smtpinfra "github.com/notify-gateway/internal/infrastructure/smtp"
	"github.com/notify-gateway/internal/template"
)

// EmailSender delivers over SMTP. The mailer memoizes its configuration
// check, so repeated sends don't re-probe the relay.
type EmailSender struct {
	mailer smtpinfra.Mailer
}

func NewEmailSender(mailer smtpinfra.Mailer) *EmailSender {
	return &EmailSender{mailer: mailer}
}

func (s *EmailSender) Channel() domain.Channel { return domain.ChannelEmail }

func (s *EmailSender) IsConfigured() bool {
	return s.mailer.Verify() == nil
}

func (s *EmailSender) Send(ctx context.Context, req domain.NotificationRequest, msg template.Rendered) Result {
	if !s.IsConfigured() {
		return failure("email configuration not verified")
	}
	if err := s.mailer.SendEmail(req.Email, msg.Subject, msg.Body); err != nil {
		slog.Error("email delivery failed", "to", req.Email, "type", req.Type, "err", err)
		return failure("email send failed: " + err.Error())
	}
	return Result{Delivered: true, Content: msg.Body}
}
