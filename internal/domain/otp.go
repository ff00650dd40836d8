package domain

import (
	"strings"
	"time"
)

// Verification purposes. A purpose scopes an OTP and its verified-email
// record to one use case.
const (
	PurposeRegistration     = "registration"
	PurposePasswordRecovery = "password_recovery"
	PurposeEmailChange      = "email_change"
	PurposeAdmin            = "admin_verification"
	PurposeEmployee         = "employee_verification"
	PurposeOwner            = "owner_verification"
)

// OTPRecord is a one-time code for (email, purpose).
// PK: email, SK: purpose. The key schema guarantees at most one record per
// pair, so issuing a new code atomically supersedes the previous one.
// ExpiresAt doubles as the DynamoDB TTL attribute.
type OTPRecord struct {
	Email      string `json:"email" dynamodbav:"email"`
	Purpose    string `json:"purpose" dynamodbav:"purpose"`
	Code       string `json:"-" dynamodbav:"code"`
	Attempts   int    `json:"attempts" dynamodbav:"attempts"`
	Verified   bool   `json:"verified" dynamodbav:"verified"`
	VerifiedAt *int64 `json:"verified_at,omitempty" dynamodbav:"verified_at,omitempty"`
	UsedAt     *int64 `json:"used_at,omitempty" dynamodbav:"used_at,omitempty"`
	ExpiresAt  int64  `json:"expires_at" dynamodbav:"expires_at"`
	CreatedAt  int64  `json:"created_at" dynamodbav:"created_at"`
}

// Active reports whether the record can still accept verification attempts.
func (o *OTPRecord) Active(now time.Time) bool {
	return !o.Verified && o.ExpiresAt > now.Unix()
}

// Expired reports whether the record's validity window has passed.
func (o *OTPRecord) Expired(now time.Time) bool {
	return o.ExpiresAt <= now.Unix()
}

// VerifiedEmailRecord marks that (email, purpose) passed OTP verification.
// It has its own, longer TTL so downstream actions have a grace window.
type VerifiedEmailRecord struct {
	Email      string `json:"email" dynamodbav:"email"`
	Purpose    string `json:"purpose" dynamodbav:"purpose"`
	IsVerified bool   `json:"is_verified" dynamodbav:"is_verified"`
	VerifiedAt int64  `json:"verified_at" dynamodbav:"verified_at"`
	ExpiresAt  int64  `json:"expires_at" dynamodbav:"expires_at"`
}

// Valid reports whether the record still gates a downstream action.
func (v *VerifiedEmailRecord) Valid(now time.Time) bool {
	return v.IsVerified && v.ExpiresAt > now.Unix()
}

// OTPStatus is the introspection view returned by the status endpoint.
type OTPStatus struct {
	Exists    bool   `json:"exists"`
	Verified  bool   `json:"verified"`
	Attempts  int    `json:"attempts"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
}

// NormalizeEmail lowercases and trims an address. Every store lookup and
// write goes through this so rate limiting cannot be bypassed by case games.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RoleForPurpose maps a verification purpose to the recipient role used for
// template selection. Admin and staff purposes carry differently worded copy.
func RoleForPurpose(purpose string) Role {
	switch {
	case strings.Contains(purpose, "admin"):
		return RoleAdmin
	case strings.Contains(purpose, "employee"):
		return RoleEmployee
	case strings.Contains(purpose, "owner"):
		return RoleOwner
	default:
		return RoleClient
	}
}
