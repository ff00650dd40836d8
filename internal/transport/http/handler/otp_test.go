package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/notify-gateway/internal/application/otp"
	"github.com/notify-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockOTPSvc struct{ mock.Mock }

func (m *mockOTPSvc) Send(ctx context.Context, email, purpose, displayName string) (*otp.SendResult, error) {
	args := m.Called(ctx, email, purpose, displayName)
	if r, _ := args.Get(0).(*otp.SendResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPSvc) Verify(ctx context.Context, email, code, purpose string) (*otp.VerifyResult, error) {
	args := m.Called(ctx, email, code, purpose)
	r, _ := args.Get(0).(*otp.VerifyResult)
	return r, args.Error(1)
}
func (m *mockOTPSvc) Resend(ctx context.Context, email, displayName string) (*otp.SendResult, error) {
	args := m.Called(ctx, email, displayName)
	if r, _ := args.Get(0).(*otp.SendResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPSvc) HasActive(ctx context.Context, email, purpose string) (bool, error) {
	args := m.Called(ctx, email, purpose)
	return args.Bool(0), args.Error(1)
}
func (m *mockOTPSvc) Status(ctx context.Context, email string) ([]domain.OTPStatus, error) {
	args := m.Called(ctx, email)
	statuses, _ := args.Get(0).([]domain.OTPStatus)
	return statuses, args.Error(1)
}
func (m *mockOTPSvc) CleanupExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
func (m *mockOTPSvc) MarkVerified(ctx context.Context, email, purpose string) error {
	return m.Called(ctx, email, purpose).Error(0)
}
func (m *mockOTPSvc) IsVerified(ctx context.Context, email, purpose string) (bool, error) {
	args := m.Called(ctx, email, purpose)
	return args.Bool(0), args.Error(1)
}
func (m *mockOTPSvc) Invalidate(ctx context.Context, email, purpose string) error {
	return m.Called(ctx, email, purpose).Error(0)
}

// --- helpers ---

func postJSON(t *testing.T, h http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- tests ---

func TestOTPSend_OK(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Send", mock.Anything, "alice@example.com", domain.PurposeRegistration, "Alice").
		Return(&otp.SendResult{OTPSent: true, RetryAfterSeconds: 60}, nil)

	rr := postJSON(t, NewOTPHandler(svc).Send, "/v1/otp/send", map[string]string{
		"email":   "alice@example.com",
		"purpose": domain.PurposeRegistration,
		"name":    "Alice",
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	var res otp.SendResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.True(t, res.OTPSent)
	assert.Equal(t, 60, res.RetryAfterSeconds)
}

func TestOTPSend_InvalidBody(t *testing.T) {
	svc := &mockOTPSvc{}

	req := httptest.NewRequest(http.MethodPost, "/v1/otp/send", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	http.HandlerFunc(NewOTPHandler(svc).Send).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOTPSend_MissingEmail(t *testing.T) {
	svc := &mockOTPSvc{}

	rr := postJSON(t, NewOTPHandler(svc).Send, "/v1/otp/send", map[string]string{"name": "Alice"})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestOTPSend_RateLimited(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrRateLimited)

	rr := postJSON(t, NewOTPHandler(svc).Send, "/v1/otp/send", map[string]string{
		"email": "alice@example.com",
	})

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestOTPVerify_OK(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Verify", mock.Anything, "alice@example.com", "123456", domain.PurposeRegistration).
		Return(&otp.VerifyResult{Verified: true, Message: "code verified"}, nil)

	rr := postJSON(t, NewOTPHandler(svc).Verify, "/v1/otp/verify", map[string]string{
		"email":   "alice@example.com",
		"code":    "123456",
		"purpose": domain.PurposeRegistration,
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	var res otp.VerifyResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.True(t, res.Verified)
}

func TestOTPVerify_WrongCodeReportsAttemptsLeft(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Verify", mock.Anything, "alice@example.com", "000000", domain.PurposeRegistration).
		Return(&otp.VerifyResult{Verified: false, Message: "invalid code, 3 attempts left", AttemptsLeft: 3}, domain.ErrUnauthorized)

	rr := postJSON(t, NewOTPHandler(svc).Verify, "/v1/otp/verify", map[string]string{
		"email":   "alice@example.com",
		"code":    "000000",
		"purpose": domain.PurposeRegistration,
	})

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var res otp.VerifyResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 3, res.AttemptsLeft)
}

func TestOTPVerify_UsedCodeConflict(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrAlreadyUsed)

	rr := postJSON(t, NewOTPHandler(svc).Verify, "/v1/otp/verify", map[string]string{
		"email": "alice@example.com",
		"code":  "123456",
	})

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestOTPVerify_MissingCode(t *testing.T) {
	svc := &mockOTPSvc{}

	rr := postJSON(t, NewOTPHandler(svc).Verify, "/v1/otp/verify", map[string]string{
		"email": "alice@example.com",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOTPResend_OK(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Resend", mock.Anything, "alice@example.com", "").
		Return(&otp.SendResult{OTPSent: true, RetryAfterSeconds: 60}, nil)

	rr := postJSON(t, NewOTPHandler(svc).Resend, "/v1/otp/resend", map[string]string{
		"email": "alice@example.com",
	})

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestOTPResend_NotFoundMapped(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Resend", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)

	rr := postJSON(t, NewOTPHandler(svc).Resend, "/v1/otp/resend", map[string]string{
		"email": "alice@example.com",
	})

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOTPStatus_OK(t *testing.T) {
	svc := &mockOTPSvc{}
	svc.On("Status", mock.Anything, "alice@example.com").Return([]domain.OTPStatus{
		{Exists: true, Attempts: 1, Purpose: domain.PurposeRegistration},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/otp/status?email=alice@example.com", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(NewOTPHandler(svc).Status).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var statuses []domain.OTPStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, domain.PurposeRegistration, statuses[0].Purpose)
}

func TestOTPStatus_MissingEmail(t *testing.T) {
	svc := &mockOTPSvc{}

	req := httptest.NewRequest(http.MethodGet, "/v1/otp/status", nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(NewOTPHandler(svc).Status).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Status", mock.Anything, mock.Anything)
}
