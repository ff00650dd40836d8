package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/notify-gateway/internal/config"
	"github.com/notify-gateway/internal/domain"
	"github.com/notify-gateway/internal/template"
)

// WhatsAppSender delivers through a messaging-provider HTTP API.
// A missing API key or sender number makes it report unavailable.
type WhatsAppSender struct {
	apiURL     string
	apiKey     string
	fromNumber string
	httpClient *http.Client
}

func NewWhatsAppSender(cfg *config.Config) *WhatsAppSender {
	return &WhatsAppSender{
		apiURL:     cfg.WhatsAppAPIURL,
		apiKey:     cfg.WhatsAppAPIKey,
		fromNumber: cfg.WhatsAppFromNumber,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WhatsAppSender) Channel() domain.Channel { return domain.ChannelWhatsApp }

func (s *WhatsAppSender) IsConfigured() bool {
	return s.apiURL != "" && s.apiKey != "" && s.fromNumber != ""
}

func (s *WhatsAppSender) Send(ctx context.Context, req domain.NotificationRequest, msg template.Rendered) Result {
	if !s.IsConfigured() {
		return failure("whatsapp not configured")
	}
	if req.Phone == "" {
		return failure("whatsapp requires a phone number")
	}

	payload, err := json.Marshal(map[string]string{
		"from": s.fromNumber,
		"to":   req.Phone,
		"body": msg.Body,
	})
	if err != nil {
		return failure("whatsapp payload: " + err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return failure("whatsapp request: " + err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("whatsapp delivery failed", "to", req.Phone, "type", req.Type, "err", err)
		return failure("whatsapp send failed: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Error("whatsapp provider rejected message", "to", req.Phone, "status", resp.StatusCode)
		return failure(fmt.Sprintf("whatsapp provider returned %d", resp.StatusCode))
	}
	return Result{Delivered: true, Content: msg.Body}
}
