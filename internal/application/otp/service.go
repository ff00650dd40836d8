package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/notify-gateway/internal/application/dispatch"
	"github.com/notify-gateway/internal/config"
	"github.com/notify-gateway/internal/domain"
	"github.com/notify-gateway/internal/pkg/validate"
)

// sealedRetentionHours is how long sealed records are kept before the
// maintenance sweep removes them.
const sealedRetentionHours = 24

// OTPStore is the persistence surface for one-time codes. Writes are
// conditional at the store level so concurrent requests for the same
// (email, purpose) pair resolve to a single winner.
type OTPStore interface {
	PutIfSendable(ctx context.Context, rec *domain.OTPRecord, resendCutoff int64) error
	Get(ctx context.Context, email, purpose string) (*domain.OTPRecord, error)
	ListByEmail(ctx context.Context, email string) ([]domain.OTPRecord, error)
	IncrementAttempts(ctx context.Context, email, purpose string, max int, now int64) (int, error)
	MarkVerified(ctx context.Context, email, purpose, code string, max int, now int64) error
	Seal(ctx context.Context, email, purpose string) error
	Touch(ctx context.Context, email, purpose string, createdAt int64) error
	Delete(ctx context.Context, email, purpose string) error
	DeleteStale(ctx context.Context, now, sealedCutoff int64) (int, error)
}

// LedgerStore is the verified-email ledger consulted by downstream actions.
type LedgerStore interface {
	Upsert(ctx context.Context, rec *domain.VerifiedEmailRecord) error
	Get(ctx context.Context, email, purpose string) (*domain.VerifiedEmailRecord, error)
	Delete(ctx context.Context, email, purpose string) error
}

// Dispatcher delivers the generated code to the recipient.
type Dispatcher interface {
	SendOTP(ctx context.Context, d dispatch.OTPDelivery) (bool, error)
}

// SendResult reports a successful code issue.
type SendResult struct {
	OTPSent           bool   `json:"otp_sent"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
	DebugCode         string `json:"debug_code,omitempty"`
}

// VerifyResult reports a verification outcome. AttemptsLeft is meaningful
// only on a failed match.
type VerifyResult struct {
	Verified     bool   `json:"verified"`
	Message      string `json:"message"`
	AttemptsLeft int    `json:"attempts_left,omitempty"`
}

// Service manages the full lifecycle of one-time codes and the
// verified-email ledger behind them.
type Service interface {
	Send(ctx context.Context, email, purpose, displayName string) (*SendResult, error)
	Verify(ctx context.Context, email, code, purpose string) (*VerifyResult, error)
	Resend(ctx context.Context, email, displayName string) (*SendResult, error)
	HasActive(ctx context.Context, email, purpose string) (bool, error)
	Status(ctx context.Context, email string) ([]domain.OTPStatus, error)
	CleanupExpired(ctx context.Context) (int, error)

	MarkVerified(ctx context.Context, email, purpose string) error
	IsVerified(ctx context.Context, email, purpose string) (bool, error)
	Invalidate(ctx context.Context, email, purpose string) error
}

// ServiceDeps bundles the OTP manager's constructor dependencies.
type ServiceDeps struct {
	OTPRepo    OTPStore
	LedgerRepo LedgerStore
	Dispatcher Dispatcher
	Policy     config.OTPPolicy
	DevMode    bool
	Now        func() time.Time
}

type service struct {
	otps       OTPStore
	ledger     LedgerStore
	dispatcher Dispatcher
	policy     config.OTPPolicy
	devMode    bool
	now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		otps:       deps.OTPRepo,
		ledger:     deps.LedgerRepo,
		dispatcher: deps.Dispatcher,
		policy:     deps.Policy,
		devMode:    deps.DevMode,
		now:        now,
	}
}

// Send issues a fresh code for (email, purpose), superseding any previous one,
// and delivers it. The store write doubles as the resend throttle; when it
// rejects, domain.ErrRateLimited is returned with no delivery attempted.
func (s *service) Send(ctx context.Context, email, purpose, displayName string) (*SendResult, error) {
	email = domain.NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	if purpose == "" {
		purpose = domain.PurposeRegistration
	}

	code, err := generateCode(s.policy.Length)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	now := s.now().UTC()
	rec := &domain.OTPRecord{
		Email:     email,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: now.Add(time.Duration(s.policy.ExpiresInMinutes) * time.Minute).Unix(),
		CreatedAt: now.Unix(),
	}
	cutoff := now.Unix() - int64(s.policy.ResendDelaySeconds)
	if err := s.otps.PutIfSendable(ctx, rec, cutoff); err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			return nil, fmt.Errorf("retry in %ds: %w", s.retryAfter(ctx, email, purpose, now), domain.ErrRateLimited)
		}
		return nil, err
	}

	if err := s.deliver(ctx, rec, displayName); err != nil {
		return nil, err
	}
	slog.Info("otp issued", "email", email, "purpose", purpose)
	return s.sendResult(code), nil
}

// Verify checks the submitted code. The happy path is a single
// compare-and-swap in the store; the read below it only classifies why the
// swap was rejected, never decides the outcome.
func (s *service) Verify(ctx context.Context, email, code, purpose string) (*VerifyResult, error) {
	email = domain.NormalizeEmail(email)
	if purpose == "" {
		purpose = domain.PurposeRegistration
	}
	// Malformed codes never reach the store and never consume an attempt.
	if !validCode(code, s.policy.Length) {
		return nil, fmt.Errorf("code must be %d digits: %w", s.policy.Length, domain.ErrBadRequest)
	}
	now := s.now().UTC()

	err := s.otps.MarkVerified(ctx, email, purpose, code, s.policy.MaxAttempts, now.Unix())
	if err == nil {
		if err := s.recordVerified(ctx, email, purpose, now); err != nil {
			return nil, err
		}
		slog.Info("otp verified", "email", email, "purpose", purpose)
		return &VerifyResult{Verified: true, Message: "code verified"}, nil
	}
	if !errors.Is(err, domain.ErrAlreadyUsed) {
		return nil, err
	}

	rec, getErr := s.otps.Get(ctx, email, purpose)
	if getErr != nil {
		if errors.Is(getErr, domain.ErrNotFound) {
			return nil, fmt.Errorf("no code requested for %s: %w", email, domain.ErrNotFound)
		}
		return nil, getErr
	}

	switch {
	case rec.Expired(now):
		// An expired code is indistinguishable from no code at all.
		return nil, fmt.Errorf("code expired: %w", domain.ErrNotFound)

	case rec.Verified:
		// A lockout seal has no verification timestamp. It stays a lockout
		// even when the submitted code matches.
		if rec.VerifiedAt == nil && rec.Attempts >= s.policy.MaxAttempts {
			return nil, fmt.Errorf("maximum attempts reached: %w", domain.ErrAttemptsExceeded)
		}
		// Successfully used codes may be replayed within their window for
		// purposes that verify in two steps.
		if s.policy.Reverifiable(purpose) && rec.VerifiedAt != nil && rec.Code == code {
			return &VerifyResult{Verified: true, Message: "code verified"}, nil
		}
		return nil, fmt.Errorf("code already used: %w", domain.ErrAlreadyUsed)

	default:
		// Active record, wrong code: count the miss.
		attempts, incErr := s.otps.IncrementAttempts(ctx, email, purpose, s.policy.MaxAttempts, now.Unix())
		if incErr != nil {
			if errors.Is(incErr, domain.ErrAttemptsExceeded) {
				if sealErr := s.otps.Seal(ctx, email, purpose); sealErr != nil {
					return nil, sealErr
				}
				return nil, fmt.Errorf("maximum attempts reached: %w", domain.ErrAttemptsExceeded)
			}
			return nil, incErr
		}
		left := s.policy.MaxAttempts - attempts
		if left <= 0 {
			if sealErr := s.otps.Seal(ctx, email, purpose); sealErr != nil {
				return nil, sealErr
			}
			return nil, fmt.Errorf("maximum attempts reached: %w", domain.ErrAttemptsExceeded)
		}
		return &VerifyResult{
			Verified:     false,
			Message:      fmt.Sprintf("invalid code, %d attempts left", left),
			AttemptsLeft: left,
		}, fmt.Errorf("invalid code: %w", domain.ErrUnauthorized)
	}
}

// Resend re-delivers the most recent active code for the email. The code is
// not regenerated unless the regenerate policy knob is on; only the throttle
// window restarts. With no active code on file it falls back to issuing a
// fresh one for the default purpose.
func (s *service) Resend(ctx context.Context, email, displayName string) (*SendResult, error) {
	email = domain.NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	now := s.now().UTC()

	recs, err := s.otps.ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	var active *domain.OTPRecord
	for i := range recs {
		if !recs[i].Active(now) {
			continue
		}
		if active == nil || recs[i].CreatedAt > active.CreatedAt {
			active = &recs[i]
		}
	}
	if active == nil {
		// Nothing to re-deliver; issue a fresh code for the default purpose.
		return s.Send(ctx, email, domain.PurposeRegistration, displayName)
	}

	elapsed := now.Unix() - active.CreatedAt
	if elapsed < int64(s.policy.ResendDelaySeconds) {
		wait := int64(s.policy.ResendDelaySeconds) - elapsed
		return nil, fmt.Errorf("retry in %ds: %w", wait, domain.ErrRateLimited)
	}

	if s.policy.ResendRegenerates {
		return s.Send(ctx, email, active.Purpose, displayName)
	}

	if err := s.otps.Touch(ctx, email, active.Purpose, now.Unix()); err != nil {
		if errors.Is(err, domain.ErrAlreadyUsed) {
			return nil, fmt.Errorf("code already used: %w", domain.ErrAlreadyUsed)
		}
		return nil, err
	}
	if err := s.deliverExisting(ctx, active, displayName); err != nil {
		return nil, err
	}
	slog.Info("otp resent", "email", email, "purpose", active.Purpose)
	return s.sendResult(active.Code), nil
}

func (s *service) HasActive(ctx context.Context, email, purpose string) (bool, error) {
	rec, err := s.otps.Get(ctx, domain.NormalizeEmail(email), purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return rec.Active(s.now().UTC()), nil
}

// Status returns the introspection view of every code on file for the email.
func (s *service) Status(ctx context.Context, email string) ([]domain.OTPStatus, error) {
	recs, err := s.otps.ListByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	statuses := make([]domain.OTPStatus, 0, len(recs))
	for _, rec := range recs {
		statuses = append(statuses, domain.OTPStatus{
			Exists:    true,
			Verified:  rec.Verified,
			Attempts:  rec.Attempts,
			ExpiresAt: rec.ExpiresAt,
			Purpose:   rec.Purpose,
		})
	}
	return statuses, nil
}

// CleanupExpired sweeps expired codes and sealed records past retention.
func (s *service) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now().UTC()
	sealedCutoff := now.Add(-sealedRetentionHours * time.Hour).Unix()
	deleted, err := s.otps.DeleteStale(ctx, now.Unix(), sealedCutoff)
	if err != nil {
		return deleted, err
	}
	if deleted > 0 {
		slog.Info("swept stale otp records", "count", deleted)
	}
	return deleted, nil
}

// MarkVerified writes a ledger entry directly, outside the OTP flow.
func (s *service) MarkVerified(ctx context.Context, email, purpose string) error {
	return s.recordVerified(ctx, domain.NormalizeEmail(email), purpose, s.now().UTC())
}

func (s *service) IsVerified(ctx context.Context, email, purpose string) (bool, error) {
	rec, err := s.ledger.Get(ctx, domain.NormalizeEmail(email), purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return rec.Valid(s.now().UTC()), nil
}

func (s *service) Invalidate(ctx context.Context, email, purpose string) error {
	return s.ledger.Delete(ctx, domain.NormalizeEmail(email), purpose)
}

// deliver dispatches a freshly written code. Delivery failure rolls the
// record back so the recipient is not throttled on a code they never got.
func (s *service) deliver(ctx context.Context, rec *domain.OTPRecord, displayName string) error {
	ok, err := s.dispatcher.SendOTP(ctx, s.delivery(rec, displayName))
	if err != nil || !ok {
		if delErr := s.otps.Delete(ctx, rec.Email, rec.Purpose); delErr != nil {
			slog.Error("otp rollback failed", "email", rec.Email, "purpose", rec.Purpose, "err", delErr)
		}
		if err != nil {
			return fmt.Errorf("%v: %w", err, domain.ErrDeliveryFailed)
		}
		return domain.ErrDeliveryFailed
	}
	return nil
}

// deliverExisting re-dispatches a still-valid code. No rollback: the stored
// code stays usable even if this delivery fails.
func (s *service) deliverExisting(ctx context.Context, rec *domain.OTPRecord, displayName string) error {
	ok, err := s.dispatcher.SendOTP(ctx, s.delivery(rec, displayName))
	if err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrDeliveryFailed)
	}
	if !ok {
		return domain.ErrDeliveryFailed
	}
	return nil
}

func (s *service) delivery(rec *domain.OTPRecord, displayName string) dispatch.OTPDelivery {
	return dispatch.OTPDelivery{
		Email:     rec.Email,
		Code:      rec.Code,
		Name:      displayName,
		Role:      domain.RoleForPurpose(rec.Purpose),
		ExpiresIn: strconv.Itoa(s.policy.ExpiresInMinutes),
	}
}

func (s *service) recordVerified(ctx context.Context, email, purpose string, now time.Time) error {
	return s.ledger.Upsert(ctx, &domain.VerifiedEmailRecord{
		Email:      email,
		Purpose:    purpose,
		IsVerified: true,
		VerifiedAt: now.Unix(),
		ExpiresAt:  now.Add(time.Duration(s.policy.VerifiedTTLHours) * time.Hour).Unix(),
	})
}

func (s *service) sendResult(code string) *SendResult {
	res := &SendResult{OTPSent: true, RetryAfterSeconds: s.policy.ResendDelaySeconds}
	if s.devMode {
		res.DebugCode = code
	}
	return res
}

// retryAfter reads the blocking record to report how long the caller must
// wait. Falls back to the full delay if the record cannot be read.
func (s *service) retryAfter(ctx context.Context, email, purpose string, now time.Time) int64 {
	rec, err := s.otps.Get(ctx, email, purpose)
	if err != nil {
		return int64(s.policy.ResendDelaySeconds)
	}
	wait := rec.CreatedAt + int64(s.policy.ResendDelaySeconds) - now.Unix()
	if wait < 0 {
		wait = 0
	}
	return wait
}

// validCode reports whether code is exactly length decimal digits.
func validCode(code string, length int) bool {
	if length <= 0 {
		length = 6
	}
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// generateCode returns length uniform random decimal digits. Leading zeros
// are valid.
func generateCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
