// Package channel holds one sender per delivery medium. Senders are
// explicitly constructed and injected; each verifies its own configuration
// lazily and reports unavailable without affecting the others.
package channel

import (
	"context"

	"github.com/notify-gateway/internal/domain"
	"github.com/notify-gateway/internal/template"
)

// Result is a channel delivery outcome. Delivery failure is a normal,
// reportable result; senders never panic or propagate transport errors.
type Result struct {
	Delivered bool
	Content   string
}

// Sender attempts delivery of a rendered message on one medium.
type Sender interface {
	Channel() domain.Channel
	IsConfigured() bool
	Send(ctx context.Context, req domain.NotificationRequest, msg template.Rendered) Result
}

func failure(reason string) Result {
	return Result{Delivered: false, Content: reason}
}
