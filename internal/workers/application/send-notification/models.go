// internal/workers/application/send-notification/models.go
package sendnotification

type Input struct {
	ApplicationID    string                 `json:"applicationId"`
	NotificationType string                 `json:"notificationType"`
	RecipientEmail   string                 `json:"recipientEmail,omitempty"`
	RecipientPhone   string                 `json:"recipientPhone,omitempty"`
	ApplicantName    string                 `json:"applicantName,omitempty"`
	Priority         string                 `json:"priority,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	NotificationID string   `json:"notificationId"`
	Status         string   `json:"status"` // "sent", "disabled"
	Channels       []string `json:"channels"`
	SentAt         string   `json:"sentAt"` // ISO 8601
}

// Notification types
const (
	TypeApplicationSubmitted = "application_submitted"
	TypeDocumentsRequired    = "documents_required"
	TypeSignatureCompleted   = "signature_completed"
)

// Statuses
const (
	StatusSent     = "sent"
	StatusDisabled = "disabled"
)

// Channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)
