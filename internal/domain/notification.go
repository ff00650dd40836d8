package domain

// Channel is a delivery medium with its own sender and content templates.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPush     Channel = "push"
)

// NotificationType enumerates templated message kinds.
type NotificationType string

const (
	TypeOTP                     NotificationType = "otp"
	TypeWelcome                 NotificationType = "welcome"
	TypeReminder                NotificationType = "reminder"
	TypeSecurityAlert           NotificationType = "security_alert"
	TypeAppointmentConfirmation NotificationType = "appointment_confirmation"
	TypePaymentConfirmation     NotificationType = "payment_confirmation"
	TypePasswordReset           NotificationType = "password_reset"
)

// Role is the recipient role used for per-audience template copy.
type Role string

const (
	RoleClient   Role = "client"
	RoleEmployee Role = "employee"
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
)

// Notification delivery status. Pending exists only transiently during
// dispatch; a record is terminal once the channel sender returns.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// NotificationRecord is one persisted delivery attempt.
type NotificationRecord struct {
	NotificationID string            `json:"id" dynamodbav:"notification_id"`
	Email          string            `json:"email" dynamodbav:"email"`
	Channel        Channel           `json:"channel" dynamodbav:"channel"`
	Type           NotificationType  `json:"type" dynamodbav:"type"`
	Role           Role              `json:"role" dynamodbav:"role"`
	Subject        string            `json:"subject,omitempty" dynamodbav:"subject"`
	Content        string            `json:"content" dynamodbav:"content"`
	Status         string            `json:"status" dynamodbav:"status"`
	Error          string            `json:"error,omitempty" dynamodbav:"error"`
	Attempts       int               `json:"attempts" dynamodbav:"attempts"`
	Data           map[string]string `json:"data,omitempty" dynamodbav:"data"`
	Metadata       map[string]string `json:"metadata,omitempty" dynamodbav:"metadata"`
	SentAt         *int64            `json:"sent_at,omitempty" dynamodbav:"sent_at,omitempty"`
	CreatedAt      int64             `json:"created_at" dynamodbav:"created_at"`
}

// NotificationRequest is the dispatcher's input contract.
type NotificationRequest struct {
	Email    string            `json:"email" validate:"required,email"`
	Phone    string            `json:"phone,omitempty"`
	Channel  Channel           `json:"channel" validate:"required"`
	Type     NotificationType  `json:"type" validate:"required"`
	Role     Role              `json:"role,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DispatchResult reports one channel delivery outcome. Channel-level failure
// is a normal, reportable result, not an error.
type DispatchResult struct {
	Success        bool    `json:"success"`
	NotificationID string  `json:"notification_id"`
	Channel        Channel `json:"channel"`
	Error          string  `json:"error,omitempty"`
}

// NotificationStats aggregates delivery counters for the internal stats endpoint.
type NotificationStats struct {
	Total       int            `json:"total"`
	ByChannel   map[string]int `json:"by_channel"`
	ByType      map[string]int `json:"by_type"`
	ByStatus    map[string]int `json:"by_status"`
	SuccessRate float64        `json:"success_rate"`
}
