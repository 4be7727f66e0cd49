package models

import "github.com/google/uuid"

// Communication types
const (
	CommunicationTypeSMS     = "SMS"
	CommunicationTypeEmail   = "EMAIL"
	CommunicationTypeWebhook = "WEBHOOK"
	CommunicationTypeTeams   = "TEAMS"
)

// CommunicationLog is the audit record of one notification attempt.
// Rows are written once per attempt and never updated afterwards;
// ErrorResponse is set (once, before the row is saved) only when the
// send attempt failed. A log-only row never attempts a send, so it
// never carries an error.
type CommunicationLog struct {
	Base
	UserID *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User   *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`

	TemplateName      string      `gorm:"size:225" json:"template_name"`
	Content           string      `gorm:"type:text" json:"content"`
	SenderAddress     string      `gorm:"size:250;not null" json:"sender_address"`
	RecipientAddress  StringArray `gorm:"type:jsonb" json:"recipient_address"`
	CommunicationType string      `gorm:"size:32;index" json:"communication_type"` // SMS, EMAIL, WEBHOOK, TEAMS
	IsLogOnly         bool        `gorm:"default:false" json:"is_log_only"`
	ErrorResponse     string      `gorm:"type:text" json:"error_response"` // Set when the upstream provider returns an error
}
