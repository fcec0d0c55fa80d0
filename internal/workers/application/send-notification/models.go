// internal/workers/application/send-notification/models.go
package sendnotification

import "application-wizard/internal/common/validation"

type Input struct {
	NotificationType  string `json:"notificationType"`
	ApplicationNumber string `json:"applicationNumber,omitempty"`
	ApplicantName     string `json:"applicantName,omitempty"`
	Phone             string `json:"phone,omitempty"`
	Email             string `json:"email,omitempty"`
	Status            string `json:"status,omitempty"`
}

type Output struct {
	NotificationID string   `json:"notificationId"`
	Status         string   `json:"status"` // "sent", "partial", "disabled"
	Channels       []string `json:"channels"`
	SentAt         string   `json:"sentAt"` // ISO 8601
}

// Notification types
const (
	TypeApplicationSubmitted    = "application_submitted"
	TypeAccountOpeningSubmitted = "account_opening_submitted"
	TypeStatusUpdate            = "status_update"
	TypeAgentNewApplication     = "agent_new_application"
)

// Statuses
const (
	StatusSent     = "sent"
	StatusPartial  = "partial"
	StatusDisabled = "disabled"
)

// Channels
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["notificationType"],
  "properties": {
    "notificationType": {
      "type": "string",
      "enum": ["application_submitted", "account_opening_submitted", "status_update", "agent_new_application"]
    },
    "applicationNumber": {"type": ["string", "null"], "maxLength": 64},
    "applicantName": {"type": ["string", "null"]},
    "phone": {"type": ["string", "null"]},
    "email": {"type": ["string", "null"]},
    "status": {"type": ["string", "null"]}
  }
}`)
