package channel

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/notify-gateway/internal/domain"
	snsinfra "github.com/notify-gateway/internal/infrastructure/sns"
	"github.com/notify-gateway/internal/template"
)

// smsMaxLen keeps messages within a single SMS segment.
const smsMaxLen = 160

// SMSSender delivers over AWS SNS. Requires a phone number on the request.
type SMSSender struct {
	publisher snsinfra.Publisher
}

func NewSMSSender(publisher snsinfra.Publisher) *SMSSender {
	return &SMSSender{publisher: publisher}
}

func (s *SMSSender) Channel() domain.Channel { return domain.ChannelSMS }

func (s *SMSSender) IsConfigured() bool { return s.publisher != nil }

func (s *SMSSender) Send(ctx context.Context, req domain.NotificationRequest, msg template.Rendered) Result {
	if !s.IsConfigured() {
		return failure("sms not configured")
	}
	if req.Phone == "" {
		return failure("sms requires a phone number")
	}
	body := truncate(msg.Body, smsMaxLen)
	if err := s.publisher.SendSMS(ctx, req.Phone, body); err != nil {
		slog.Error("sms delivery failed", "to", req.Phone, "type", req.Type, "err", err)
		return failure("sms send failed: " + err.Error())
	}
	return Result{Delivered: true, Content: body}
}

// truncate cuts on a rune boundary so a multi-byte character is never split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
