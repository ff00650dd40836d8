package channel

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/notify-gateway/internal/domain"
	snsinfra "github.com/notify-gateway/internal/infrastructure/sns"
	"github.com/notify-gateway/internal/template"
)

// metaPushTarget is the request-metadata key carrying the device endpoint ARN.
const metaPushTarget = "push_target_arn"

// PushSender delivers to an SNS platform endpoint. The target ARN comes from
// request metadata, falling back to the configured default.
type PushSender struct {
	publisher  snsinfra.Publisher
	defaultARN string
}

func NewPushSender(publisher snsinfra.Publisher, defaultARN string) *PushSender {
	return &PushSender{publisher: publisher, defaultARN: defaultARN}
}

func (s *PushSender) Channel() domain.Channel { return domain.ChannelPush }

func (s *PushSender) IsConfigured() bool { return s.publisher != nil }

func (s *PushSender) Send(ctx context.Context, req domain.NotificationRequest, msg template.Rendered) Result {
	if !s.IsConfigured() {
		return failure("push not configured")
	}
	target := req.Metadata[metaPushTarget]
	if target == "" {
		target = s.defaultARN
	}
	if target == "" {
		return failure("push requires a target endpoint")
	}

	payload, err := json.Marshal(map[string]string{
		"title": msg.Subject,
		"body":  msg.Body,
	})
	if err != nil {
		return failure("push payload: " + err.Error())
	}
	if err := s.publisher.PublishToTarget(ctx, target, string(payload)); err != nil {
		slog.Error("push delivery failed", "target", target, "type", req.Type, "err", err)
		return failure("push send failed: " + err.Error())
	}
	return Result{Delivered: true, Content: string(payload)}
}
