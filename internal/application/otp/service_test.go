package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/notify-gateway/internal/application/dispatch"
	"github.com/notify-gateway/internal/config"
	"github.com/notify-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockOTPStore struct{ mock.Mock }

func (m *mockOTPStore) PutIfSendable(ctx context.Context, rec *domain.OTPRecord, resendCutoff int64) error {
	return m.Called(ctx, rec, resendCutoff).Error(0)
}
func (m *mockOTPStore) Get(ctx context.Context, email, purpose string) (*domain.OTPRecord, error) {
	args := m.Called(ctx, email, purpose)
	if r, _ := args.Get(0).(*domain.OTPRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPStore) ListByEmail(ctx context.Context, email string) ([]domain.OTPRecord, error) {
	args := m.Called(ctx, email)
	recs, _ := args.Get(0).([]domain.OTPRecord)
	return recs, args.Error(1)
}
func (m *mockOTPStore) IncrementAttempts(ctx context.Context, email, purpose string, max int, now int64) (int, error) {
	args := m.Called(ctx, email, purpose, max, now)
	return args.Int(0), args.Error(1)
}
func (m *mockOTPStore) MarkVerified(ctx context.Context, email, purpose, code string, max int, now int64) error {
	return m.Called(ctx, email, purpose, code, max, now).Error(0)
}
func (m *mockOTPStore) Seal(ctx context.Context, email, purpose string) error {
	return m.Called(ctx, email, purpose).Error(0)
}
func (m *mockOTPStore) Touch(ctx context.Context, email, purpose string, createdAt int64) error {
	return m.Called(ctx, email, purpose, createdAt).Error(0)
}
func (m *mockOTPStore) Delete(ctx context.Context, email, purpose string) error {
	return m.Called(ctx, email, purpose).Error(0)
}
func (m *mockOTPStore) DeleteStale(ctx context.Context, now, sealedCutoff int64) (int, error) {
	args := m.Called(ctx, now, sealedCutoff)
	return args.Int(0), args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Upsert(ctx context.Context, rec *domain.VerifiedEmailRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockLedger) Get(ctx context.Context, email, purpose string) (*domain.VerifiedEmailRecord, error) {
	args := m.Called(ctx, email, purpose)
	if r, _ := args.Get(0).(*domain.VerifiedEmailRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockLedger) Delete(ctx context.Context, email, purpose string) error {
	return m.Called(ctx, email, purpose).Error(0)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) SendOTP(ctx context.Context, d dispatch.OTPDelivery) (bool, error) {
	args := m.Called(ctx, d)
	return args.Bool(0), args.Error(1)
}

// --- helpers ---

var testNow = time.Unix(1700000000, 0)

func testPolicy() config.OTPPolicy {
	return config.OTPPolicy{
		Length:               6,
		ExpiresInMinutes:     10,
		MaxAttempts:          5,
		ResendDelaySeconds:   60,
		VerifiedTTLHours:     24,
		ReverifiablePurposes: []string{domain.PurposePasswordRecovery},
	}
}

func newSvc(st *mockOTPStore, lg *mockLedger, dp *mockDispatcher, mods ...func(*ServiceDeps)) Service {
	deps := ServiceDeps{
		OTPRepo:    st,
		LedgerRepo: lg,
		Dispatcher: dp,
		Policy:     testPolicy(),
		DevMode:    true,
		Now:        func() time.Time { return testNow },
	}
	for _, mod := range mods {
		mod(&deps)
	}
	return NewService(deps)
}

func activeRecord() *domain.OTPRecord {
	return &domain.OTPRecord{
		Email:     "alice@example.com",
		Purpose:   domain.PurposeRegistration,
		Code:      "123456",
		Attempts:  0,
		ExpiresAt: testNow.Add(10 * time.Minute).Unix(),
		CreatedAt: testNow.Add(-2 * time.Minute).Unix(),
	}
}

// --- Send tests ---

func TestSend_IssuesAndDelivers(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	cutoff := testNow.Unix() - 60
	st.On("PutIfSendable", mock.Anything, mock.MatchedBy(func(rec *domain.OTPRecord) bool {
		return rec.Email == "alice@example.com" &&
			rec.Purpose == domain.PurposeRegistration &&
			len(rec.Code) == 6 &&
			rec.ExpiresAt == testNow.Add(10*time.Minute).Unix()
	}), cutoff).Return(nil)
	dp.On("SendOTP", mock.Anything, mock.MatchedBy(func(d dispatch.OTPDelivery) bool {
		return d.Email == "alice@example.com" && len(d.Code) == 6 && d.ExpiresIn == "10"
	})).Return(true, nil)

	res, err := newSvc(st, lg, dp).Send(context.Background(), " Alice@Example.COM ", domain.PurposeRegistration, "Alice")

	require.NoError(t, err)
	assert.True(t, res.OTPSent)
	assert.Equal(t, 60, res.RetryAfterSeconds)
	assert.Len(t, res.DebugCode, 6)
	for _, c := range res.DebugCode {
		assert.True(t, c >= '0' && c <= '9')
	}
}

func TestSend_DebugCodeHiddenOutsideDev(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	st.On("PutIfSendable", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	dp.On("SendOTP", mock.Anything, mock.Anything).Return(true, nil)

	svc := newSvc(st, lg, dp, func(d *ServiceDeps) { d.DevMode = false })
	res, err := svc.Send(context.Background(), "alice@example.com", domain.PurposeRegistration, "Alice")

	require.NoError(t, err)
	assert.Empty(t, res.DebugCode)
}

func TestSend_Throttled(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	st.On("PutIfSendable", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrRateLimited)
	existing := activeRecord()
	existing.CreatedAt = testNow.Add(-20 * time.Second).Unix()
	st.On("Get", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(existing, nil)

	_, err := newSvc(st, lg, dp).Send(context.Background(), "alice@example.com", domain.PurposeRegistration, "Alice")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	assert.Contains(t, err.Error(), "40s")
	dp.AssertNotCalled(t, "SendOTP", mock.Anything, mock.Anything)
}

func TestSend_InvalidEmail(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	_, err := newSvc(st, lg, dp).Send(context.Background(), "not-an-email", domain.PurposeRegistration, "Alice")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	st.AssertNotCalled(t, "PutIfSendable", mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_DeliveryFailureRollsBack(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	st.On("PutIfSendable", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	dp.On("SendOTP", mock.Anything, mock.Anything).Return(false, nil)
	st.On("Delete", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(nil)

	_, err := newSvc(st, lg, dp).Send(context.Background(), "alice@example.com", domain.PurposeRegistration, "Alice")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDeliveryFailed))
	st.AssertCalled(t, "Delete", mock.Anything, "alice@example.com", domain.PurposeRegistration)
}

// --- Verify tests ---

func TestVerify_Success(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	st.On("MarkVerified", mock.Anything, "alice@example.com", domain.PurposeRegistration, "123456", 5, testNow.Unix()).Return(nil)
	lg.On("Upsert", mock.Anything, mock.MatchedBy(func(rec *domain.VerifiedEmailRecord) bool {
		return rec.Email == "alice@example.com" &&
			rec.IsVerified &&
			rec.ExpiresAt == testNow.Add(24*time.Hour).Unix()
	})).Return(nil)

	res, err := newSvc(st, lg, dp).Verify(context.Background(), "alice@example.com", "123456", domain.PurposeRegistration)

	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func TestVerify_NoCodeRequested(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	st.On("MarkVerified", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrAlreadyUsed)
	st.On("Get", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(nil, domain.ErrNotFound)

	_, err := newSvc(st, lg, dp).Verify(context.Background(), "alice@example.com", "123456", domain.PurposeRegistration)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestVerify_ExpiredTreatedAsNotFound(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	rec := activeRecord()
	rec.ExpiresAt = testNow.Add(-time.Minute).Unix()
	st.On("MarkVerified", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrAlreadyUsed)
	st.On("Get", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(rec, nil)

	_, err := newSvc(st, lg, dp).Verify(context.Background(), "alice@example.com", "123456", domain.PurposeRegistration)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	st.AssertNotCalled(t, "IncrementAttempts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_MalformedCodeRejectedBeforeStore(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}
	svc := newSvc(st, lg, dp)

	for _, code := range []string{"", "123", "1234567", "12345a"} {
		_, err := svc.Verify(context.Background(), "alice@example.com", code, domain.PurposeRegistration)
		require.Error(t, err, code)
		assert.True(t, errors.Is(err, domain.ErrBadRequest), code)
	}
	st.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "IncrementAttempts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_WrongCodeCountsAttempt(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	st.On("MarkVerified", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrAlreadyUsed)
	st.On("Get", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(activeRecord(), nil)
	st.On("IncrementAttempts", mock.Anything, "alice@example.com", domain.PurposeRegistration, 5, testNow.Unix()).Return(2, nil)

	res, err := newSvc(st, lg, dp).Verify(context.Background(), "alice@example.com", "000000", domain.PurposeRegistration)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	require.NotNil(t, res)
	assert.False(t, res.Verified)
	assert.Equal(t, 3, res.AttemptsLeft)
	st.AssertNotCalled(t, "Seal", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_LastAttemptSealsRecord(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	st.On("MarkVerified", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrAlreadyUsed)
	st.On("Get", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(activeRecord(), nil)
	st.On("IncrementAttempts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(5, nil)
	st.On("Seal", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(nil)

	_, err := newSvc(st, lg, dp).Verify(context.Background(), "alice@example.com", "000000", domain.PurposeRegistration)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAttemptsExceeded))
	st.AssertCalled(t, "Seal", mock.Anything, "alice@example.com", domain.PurposeRegistration)
}

func TestVerify_LockedOutRecordSealed(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	st.On("MarkVerified", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrAlreadyUsed)
	st.On("Get", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(activeRecord(), nil)
	st.On("IncrementAttempts", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(0, domain.ErrAttemptsExceeded)
	st.On("Seal", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(nil)

	_, err := newSvc(st, lg, dp).Verify(context.Background(), "alice@example.com", "000000", domain.PurposeRegistration)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAttemptsExceeded))
}

func TestVerify_CorrectCodeAfterLockoutStillExceeded(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	rec := activeRecord()
	rec.Verified = true
	rec.VerifiedAt = nil
	rec.Attempts = 5
	st.On("MarkVerified", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrAlreadyUsed)
	st.On("Get", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(rec, nil)

	_, err := newSvc(st, lg, dp).Verify(context.Background(), "alice@example.com", "123456", domain.PurposeRegistration)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAttemptsExceeded))
	assert.False(t, errors.Is(err, domain.ErrAlreadyUsed))
}

func TestVerify_UsedCodeRejected(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	rec := activeRecord()
	rec.Verified = true
	verifiedAt := testNow.Add(-time.Minute).Unix()
	rec.VerifiedAt = &verifiedAt
	st.On("MarkVerified", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrAlreadyUsed)
	st.On("Get", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(rec, nil)

	_, err := newSvc(st, lg, dp).Verify(context.Background(), "alice@example.com", "123456", domain.PurposeRegistration)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAlreadyUsed))
}

func TestVerify_ReverifiablePurposeReplays(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	rec := activeRecord()
	rec.Purpose = domain.PurposePasswordRecovery
	rec.Verified = true
	verifiedAt := testNow.Add(-time.Minute).Unix()
	rec.VerifiedAt = &verifiedAt
	st.On("MarkVerified", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrAlreadyUsed)
	st.On("Get", mock.Anything, "alice@example.com", domain.PurposePasswordRecovery).Return(rec, nil)

	res, err := newSvc(st, lg, dp).Verify(context.Background(), "alice@example.com", "123456", domain.PurposePasswordRecovery)

	require.NoError(t, err)
	assert.True(t, res.Verified)
}

func TestVerify_ReverifiableWrongCodeRejected(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	rec := activeRecord()
	rec.Purpose = domain.PurposePasswordRecovery
	rec.Verified = true
	verifiedAt := testNow.Add(-time.Minute).Unix()
	rec.VerifiedAt = &verifiedAt
	st.On("MarkVerified", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrAlreadyUsed)
	st.On("Get", mock.Anything, "alice@example.com", domain.PurposePasswordRecovery).Return(rec, nil)

	_, err := newSvc(st, lg, dp).Verify(context.Background(), "alice@example.com", "999999", domain.PurposePasswordRecovery)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAlreadyUsed))
}

// --- Resend tests ---

func TestResend_RedeliversSameCode(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	st.On("ListByEmail", mock.Anything, "alice@example.com").Return([]domain.OTPRecord{*activeRecord()}, nil)
	st.On("Touch", mock.Anything, "alice@example.com", domain.PurposeRegistration, testNow.Unix()).Return(nil)
	dp.On("SendOTP", mock.Anything, mock.MatchedBy(func(d dispatch.OTPDelivery) bool {
		return d.Code == "123456"
	})).Return(true, nil)

	res, err := newSvc(st, lg, dp).Resend(context.Background(), "alice@example.com", "Alice")

	require.NoError(t, err)
	assert.True(t, res.OTPSent)
	assert.Equal(t, "123456", res.DebugCode)
	st.AssertNotCalled(t, "PutIfSendable", mock.Anything, mock.Anything, mock.Anything)
}

func TestResend_Throttled(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	rec := *activeRecord()
	rec.CreatedAt = testNow.Add(-10 * time.Second).Unix()
	st.On("ListByEmail", mock.Anything, "alice@example.com").Return([]domain.OTPRecord{rec}, nil)

	_, err := newSvc(st, lg, dp).Resend(context.Background(), "alice@example.com", "Alice")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	dp.AssertNotCalled(t, "SendOTP", mock.Anything, mock.Anything)
}

func TestResend_NoActiveCodeIssuesFreshDefault(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	sealed := *activeRecord()
	sealed.Verified = true
	st.On("ListByEmail", mock.Anything, "alice@example.com").Return([]domain.OTPRecord{sealed}, nil)
	st.On("PutIfSendable", mock.Anything, mock.MatchedBy(func(rec *domain.OTPRecord) bool {
		return rec.Purpose == domain.PurposeRegistration && len(rec.Code) == 6
	}), mock.Anything).Return(nil)
	dp.On("SendOTP", mock.Anything, mock.Anything).Return(true, nil)

	res, err := newSvc(st, lg, dp).Resend(context.Background(), "alice@example.com", "Alice")

	require.NoError(t, err)
	assert.True(t, res.OTPSent)
	st.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResend_PicksNewestActiveRecord(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	older := *activeRecord()
	older.Purpose = domain.PurposePasswordRecovery
	older.Code = "111111"
	older.CreatedAt = testNow.Add(-5 * time.Minute).Unix()
	newer := *activeRecord()
	st.On("ListByEmail", mock.Anything, "alice@example.com").Return([]domain.OTPRecord{older, newer}, nil)
	st.On("Touch", mock.Anything, "alice@example.com", domain.PurposeRegistration, testNow.Unix()).Return(nil)
	dp.On("SendOTP", mock.Anything, mock.Anything).Return(true, nil)

	res, err := newSvc(st, lg, dp).Resend(context.Background(), "alice@example.com", "Alice")

	require.NoError(t, err)
	assert.Equal(t, "123456", res.DebugCode)
}

func TestResend_RegeneratePolicyIssuesFreshCode(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	st.On("ListByEmail", mock.Anything, "alice@example.com").Return([]domain.OTPRecord{*activeRecord()}, nil)
	st.On("PutIfSendable", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	dp.On("SendOTP", mock.Anything, mock.Anything).Return(true, nil)

	svc := newSvc(st, lg, dp, func(d *ServiceDeps) { d.Policy.ResendRegenerates = true })
	res, err := svc.Resend(context.Background(), "alice@example.com", "Alice")

	require.NoError(t, err)
	assert.True(t, res.OTPSent)
	st.AssertCalled(t, "PutIfSendable", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- status / ledger / maintenance tests ---

func TestHasActive(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	st.On("Get", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(activeRecord(), nil)
	st.On("Get", mock.Anything, "bob@example.com", domain.PurposeRegistration).Return(nil, domain.ErrNotFound)

	svc := newSvc(st, lg, dp)

	active, err := svc.HasActive(context.Background(), "alice@example.com", domain.PurposeRegistration)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = svc.HasActive(context.Background(), "bob@example.com", domain.PurposeRegistration)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestStatus(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	rec := *activeRecord()
	rec.Attempts = 2
	st.On("ListByEmail", mock.Anything, "alice@example.com").Return([]domain.OTPRecord{rec}, nil)

	statuses, err := newSvc(st, lg, dp).Status(context.Background(), "alice@example.com")

	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Exists)
	assert.Equal(t, 2, statuses[0].Attempts)
	assert.Equal(t, domain.PurposeRegistration, statuses[0].Purpose)
}

func TestIsVerified(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	valid := &domain.VerifiedEmailRecord{
		Email: "alice@example.com", Purpose: domain.PurposeRegistration,
		IsVerified: true, ExpiresAt: testNow.Add(time.Hour).Unix(),
	}
	stale := &domain.VerifiedEmailRecord{
		Email: "bob@example.com", Purpose: domain.PurposeRegistration,
		IsVerified: true, ExpiresAt: testNow.Add(-time.Hour).Unix(),
	}
	lg.On("Get", mock.Anything, "alice@example.com", domain.PurposeRegistration).Return(valid, nil)
	lg.On("Get", mock.Anything, "bob@example.com", domain.PurposeRegistration).Return(stale, nil)
	lg.On("Get", mock.Anything, "carol@example.com", domain.PurposeRegistration).Return(nil, domain.ErrNotFound)

	svc := newSvc(st, lg, dp)

	ok, err := svc.IsVerified(context.Background(), "alice@example.com", domain.PurposeRegistration)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsVerified(context.Background(), "bob@example.com", domain.PurposeRegistration)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsVerified(context.Background(), "carol@example.com", domain.PurposeRegistration)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCleanupExpired(t *testing.T) {
	st, lg, dp := &mockOTPStore{}, &mockLedger{}, &mockDispatcher{}

	sealedCutoff := testNow.Add(-24 * time.Hour).Unix()
	st.On("DeleteStale", mock.Anything, testNow.Unix(), sealedCutoff).Return(3, nil)

	deleted, err := newSvc(st, lg, dp).CleanupExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
}

func TestGenerateCode(t *testing.T) {
	for _, length := range []int{4, 6, 8} {
		code, err := generateCode(length)
		require.NoError(t, err)
		assert.Len(t, code, length)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9')
		}
	}
}
