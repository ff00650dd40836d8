package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	OTP OTPPolicy

	ArchiveBucket string // S3 bucket for purged-notification archives

	// Public key used to verify platform-issued bearer tokens on the
	// notification history endpoints. This service never signs tokens.
	JWTPublicKeyPath string

	// bcrypt hash of the shared key internal services present on /internal routes.
	InternalKeyHash string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string
	// Default platform endpoint ARN for push delivery; a request may override
	// it through metadata.
	PushTargetARN string

	WhatsAppAPIURL     string
	WhatsAppAPIKey     string
	WhatsAppFromNumber string

	AllowedOrigins []string
}

// OTPPolicy holds the numeric policy knobs for the OTP lifecycle.
type OTPPolicy struct {
	Length             int
	ExpiresInMinutes   int
	MaxAttempts        int
	ResendDelaySeconds int
	VerifiedTTLHours   int

	// ResendRegenerates switches resend from re-delivering the same code to
	// sealing the active record and issuing a fresh one. Divergent source
	// revisions disagreed here, so it is a policy knob.
	ResendRegenerates bool

	// ReverifiablePurposes lists purposes whose already-used code may be
	// verified again within its validity window (idempotent replay for flows
	// that verify once in middleware and once in the handler).
	ReverifiablePurposes []string
}

// Reverifiable reports whether purpose permits re-verification of a used code.
func (p OTPPolicy) Reverifiable(purpose string) bool {
	for _, v := range p.ReverifiablePurposes {
		if v == purpose {
			return true
		}
	}
	return false
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	OTPs           string
	VerifiedEmails string
	Notifications  string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			OTPs:           getEnv("DYNAMO_TABLE_OTPS", "otps"),
			VerifiedEmails: getEnv("DYNAMO_TABLE_VERIFIED_EMAILS", "verified_emails"),
			Notifications:  getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
		},

		OTP: OTPPolicy{
			Length:               getEnvInt("OTP_CODE_LENGTH", 6),
			ExpiresInMinutes:     getEnvInt("OTP_EXPIRES_IN_MINUTES", 10),
			MaxAttempts:          getEnvInt("OTP_MAX_ATTEMPTS", 5),
			ResendDelaySeconds:   getEnvInt("OTP_RESEND_DELAY_SECONDS", 60),
			VerifiedTTLHours:     getEnvInt("OTP_VERIFIED_TTL_HOURS", 24),
			ResendRegenerates:    getEnvBool("OTP_RESEND_REGENERATES", false),
			ReverifiablePurposes: splitNonEmpty(getEnv("OTP_REVERIFIABLE_PURPOSES", "password_recovery")),
		},

		ArchiveBucket: getEnv("S3_ARCHIVE_BUCKET", "notification-archive"),

		JWTPublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		InternalKeyHash:  getEnv("INTERNAL_KEY_HASH", ""),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion:     getEnv("SNS_REGION", "us-east-1"),
		PushTargetARN: getEnv("PUSH_TARGET_ARN", ""),

		WhatsAppAPIURL:     getEnv("WHATSAPP_API_URL", ""),
		WhatsAppAPIKey:     getEnv("WHATSAPP_API_KEY", ""),
		WhatsAppFromNumber: getEnv("WHATSAPP_FROM_NUMBER", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
