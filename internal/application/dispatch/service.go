package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/notify-gateway/internal/channel"
	"github.com/notify-gateway/internal/domain"
	"github.com/notify-gateway/internal/pkg/id"
	"github.com/notify-gateway/internal/pkg/validate"
	"github.com/notify-gateway/internal/template"
)

// maxDeliveryAttempts bounds the failed-notification retry job.
const maxDeliveryAttempts = 3

// NotificationStore is the persistence surface the dispatcher requires.
type NotificationStore interface {
	Put(ctx context.Context, n *domain.NotificationRecord) error
	Get(ctx context.Context, notificationID string) (*domain.NotificationRecord, error)
	MarkResult(ctx context.Context, notificationID, status, errMsg string, sentAt *int64) error
	IncrementAttempts(ctx context.Context, notificationID string) error
	ListByEmail(ctx context.Context, email string, limit int32, cursor string) ([]domain.NotificationRecord, string, error)
	ListByStatus(ctx context.Context, status string, limit int32) ([]domain.NotificationRecord, error)
	Stats(ctx context.Context) (*domain.NotificationStats, error)
	ListTerminalOlderThan(ctx context.Context, cutoff int64) ([]domain.NotificationRecord, error)
	Delete(ctx context.Context, notificationID string) error
}

// Archiver receives purged records before they leave the primary store.
type Archiver interface {
	Store(ctx context.Context, batch []domain.NotificationRecord) (string, error)
}

// Renderer resolves templated content for (type, channel, role).
type Renderer interface {
	Render(typ domain.NotificationType, ch domain.Channel, role domain.Role, data map[string]string) (template.Rendered, error)
}

// Service routes notification requests to channel senders and persists every
// delivery attempt with its terminal outcome.
type Service interface {
	Send(ctx context.Context, req domain.NotificationRequest) (*domain.DispatchResult, error)
	SendMultiChannel(ctx context.Context, req domain.NotificationRequest, channels []domain.Channel) (bool, []domain.DispatchResult)
	SendOTP(ctx context.Context, req OTPDelivery) (bool, error)
	SendWelcome(ctx context.Context, email string, role domain.Role, data map[string]string) (bool, error)
	SendSecurityAlert(ctx context.Context, email string, role domain.Role, data map[string]string) (bool, error)
	SendReminder(ctx context.Context, email string, role domain.Role, data map[string]string) (bool, error)

	History(ctx context.Context, email string, limit int32, cursor string) ([]domain.NotificationRecord, string, error)
	Get(ctx context.Context, notificationID string) (*domain.NotificationRecord, error)
	ListByStatus(ctx context.Context, status string, limit int32) ([]domain.NotificationRecord, error)
	Stats(ctx context.Context) (*domain.NotificationStats, error)
	RetryFailed(ctx context.Context) (retried, successful int, err error)
	CleanupOld(ctx context.Context, olderThan time.Duration) (deleted int, archiveKey string, err error)
}

// OTPDelivery is the payload for the OTP convenience wrapper.
type OTPDelivery struct {
	Email     string
	Phone     string
	Code      string
	Name      string
	Role      domain.Role
	ExpiresIn string
}

// ServiceDeps bundles the dispatcher's constructor dependencies.
type ServiceDeps struct {
	Store    NotificationStore
	Archive  Archiver
	Renderer Renderer
	Senders  []channel.Sender
	Now      func() time.Time
}

type service struct {
	store    NotificationStore
	archive  Archiver
	renderer Renderer
	senders  map[domain.Channel]channel.Sender
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	senders := make(map[domain.Channel]channel.Sender, len(deps.Senders))
	for _, s := range deps.Senders {
		senders[s.Channel()] = s
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:    deps.Store,
		archive:  deps.Archive,
		renderer: deps.Renderer,
		senders:  senders,
		now:      now,
	}
}

// welcomeChannels is the static role→channels policy for welcome messages.
var welcomeChannels = map[domain.Role][]domain.Channel{
	domain.RoleClient:   {domain.ChannelEmail},
	domain.RoleEmployee: {domain.ChannelEmail},
	domain.RoleOwner:    {domain.ChannelEmail, domain.ChannelWhatsApp},
	domain.RoleAdmin:    {domain.ChannelEmail},
}

func (s *service) Send(ctx context.Context, req domain.NotificationRequest) (*domain.DispatchResult, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	req.Email = domain.NormalizeEmail(req.Email)
	if req.Role == "" {
		req.Role = domain.RoleClient
	}

	sender, ok := s.senders[req.Channel]
	if !ok {
		return nil, fmt.Errorf("channel %q: %w", req.Channel, domain.ErrUnsupportedChannel)
	}

	msg, err := s.renderer.Render(req.Type, req.Channel, req.Role, req.Data)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &domain.NotificationRecord{
		NotificationID: id.New(),
		Email:          req.Email,
		Channel:        req.Channel,
		Type:           req.Type,
		Role:           req.Role,
		Subject:        msg.Subject,
		Content:        msg.Body,
		Status:         domain.StatusPending,
		Attempts:       1,
		Data:           req.Data,
		Metadata:       req.Metadata,
		CreatedAt:      now.Unix(),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, err
	}

	result := sender.Send(ctx, req, msg)

	// The record must never stay pending past this point.
	if result.Delivered {
		sentAt := s.now().UTC().Unix()
		if err := s.store.MarkResult(ctx, rec.NotificationID, domain.StatusSent, "", &sentAt); err != nil {
			return nil, err
		}
		slog.Info("notification sent", "id", rec.NotificationID, "channel", req.Channel, "type", req.Type)
		return &domain.DispatchResult{Success: true, NotificationID: rec.NotificationID, Channel: req.Channel}, nil
	}

	if err := s.store.MarkResult(ctx, rec.NotificationID, domain.StatusFailed, result.Content, nil); err != nil {
		return nil, err
	}
	slog.Warn("notification failed", "id", rec.NotificationID, "channel", req.Channel, "type", req.Type, "reason", result.Content)
	return &domain.DispatchResult{Success: false, NotificationID: rec.NotificationID, Channel: req.Channel, Error: result.Content}, nil
}

// SendMultiChannel dispatches independently and concurrently to each channel.
// Overall success is true if any channel succeeded; no channel's failure
// cancels another's in-flight attempt.
func (s *service) SendMultiChannel(ctx context.Context, req domain.NotificationRequest, channels []domain.Channel) (bool, []domain.DispatchResult) {
	results := make([]domain.DispatchResult, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch domain.Channel) {
			defer wg.Done()
			chReq := req
			chReq.Channel = ch
			res, err := s.Send(ctx, chReq)
			if err != nil {
				results[i] = domain.DispatchResult{Success: false, Channel: ch, Error: err.Error()}
				return
			}
			results[i] = *res
		}(i, ch)
	}
	wg.Wait()

	for _, r := range results {
		if r.Success {
			return true, results
		}
	}
	return false, results
}

func (s *service) SendOTP(ctx context.Context, d OTPDelivery) (bool, error) {
	res, err := s.Send(ctx, domain.NotificationRequest{
		Email:   d.Email,
		Phone:   d.Phone,
		Channel: domain.ChannelEmail,
		Type:    domain.TypeOTP,
		Role:    d.Role,
		Data: map[string]string{
			"otp_code":   d.Code,
			"name":       d.Name,
			"expires_in": d.ExpiresIn,
		},
		Metadata: map[string]string{"source": "otp_service", "internal": "true"},
	})
	if err != nil {
		return false, err
	}
	return res.Success, nil
}

func (s *service) SendWelcome(ctx context.Context, email string, role domain.Role, data map[string]string) (bool, error) {
	channels, ok := welcomeChannels[role]
	if !ok {
		channels = []domain.Channel{domain.ChannelEmail}
	}
	ok, _ = s.SendMultiChannel(ctx, domain.NotificationRequest{
		Email:    email,
		Phone:    data["phone"],
		Type:     domain.TypeWelcome,
		Role:     role,
		Data:     data,
		Metadata: map[string]string{"source": "user_registration", "internal": "true"},
	}, channels)
	return ok, nil
}

func (s *service) SendSecurityAlert(ctx context.Context, email string, role domain.Role, data map[string]string) (bool, error) {
	res, err := s.Send(ctx, domain.NotificationRequest{
		Email:    email,
		Channel:  domain.ChannelEmail,
		Type:     domain.TypeSecurityAlert,
		Role:     role,
		Data:     data,
		Metadata: map[string]string{"source": "security_service", "internal": "true", "priority": "high"},
	})
	if err != nil {
		return false, err
	}
	return res.Success, nil
}

func (s *service) SendReminder(ctx context.Context, email string, role domain.Role, data map[string]string) (bool, error) {
	res, err := s.Send(ctx, domain.NotificationRequest{
		Email:    email,
		Channel:  domain.ChannelEmail,
		Type:     domain.TypeReminder,
		Role:     role,
		Data:     data,
		Metadata: map[string]string{"source": "reminder_service", "internal": "true"},
	})
	if err != nil {
		return false, err
	}
	return res.Success, nil
}

func (s *service) History(ctx context.Context, email string, limit int32, cursor string) ([]domain.NotificationRecord, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListByEmail(ctx, domain.NormalizeEmail(email), limit, cursor)
}

func (s *service) Get(ctx context.Context, notificationID string) (*domain.NotificationRecord, error) {
	return s.store.Get(ctx, notificationID)
}

func (s *service) ListByStatus(ctx context.Context, status string, limit int32) ([]domain.NotificationRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListByStatus(ctx, status, limit)
}

func (s *service) Stats(ctx context.Context) (*domain.NotificationStats, error) {
	return s.store.Stats(ctx)
}

// RetryFailed re-attempts failed deliveries using the already-rendered
// content. Each record is retried at most maxDeliveryAttempts times in total.
func (s *service) RetryFailed(ctx context.Context) (int, int, error) {
	failed, err := s.store.ListByStatus(ctx, domain.StatusFailed, 50)
	if err != nil {
		return 0, 0, err
	}

	retried, successful := 0, 0
	for _, n := range failed {
		if n.Attempts >= maxDeliveryAttempts {
			continue
		}
		sender, ok := s.senders[n.Channel]
		if !ok {
			continue
		}
		retried++
		if err := s.store.IncrementAttempts(ctx, n.NotificationID); err != nil {
			return retried, successful, err
		}

		req := domain.NotificationRequest{
			Email:    n.Email,
			Phone:    n.Data["phone"],
			Channel:  n.Channel,
			Type:     n.Type,
			Role:     n.Role,
			Data:     n.Data,
			Metadata: n.Metadata,
		}
		result := sender.Send(ctx, req, template.Rendered{Subject: n.Subject, Body: n.Content})
		if result.Delivered {
			sentAt := s.now().UTC().Unix()
			if err := s.store.MarkResult(ctx, n.NotificationID, domain.StatusSent, "", &sentAt); err != nil {
				return retried, successful, err
			}
			successful++
		} else if err := s.store.MarkResult(ctx, n.NotificationID, domain.StatusFailed, result.Content, nil); err != nil {
			return retried, successful, err
		}
	}
	return retried, successful, nil
}

// CleanupOld archives terminal records older than the window to S3, then
// deletes them from the primary store.
func (s *service) CleanupOld(ctx context.Context, olderThan time.Duration) (int, string, error) {
	cutoff := s.now().UTC().Add(-olderThan).Unix()
	batch, err := s.store.ListTerminalOlderThan(ctx, cutoff)
	if err != nil {
		return 0, "", err
	}
	if len(batch) == 0 {
		return 0, "", nil
	}

	key, err := s.archive.Store(ctx, batch)
	if err != nil {
		return 0, "", fmt.Errorf("archive before purge: %w", err)
	}

	deleted := 0
	for _, n := range batch {
		if err := s.store.Delete(ctx, n.NotificationID); err != nil {
			return deleted, key, err
		}
		deleted++
	}
	slog.Info("purged old notifications", "count", deleted, "archive", key)
	return deleted, key, nil
}
