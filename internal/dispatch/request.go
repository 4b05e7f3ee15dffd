package dispatch

import (
	"time"

	"github.com/google/uuid"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// SendRequest is the body of POST /api/v1/send [spec §6].
type SendRequest struct {
	Channel           domain.Channel    `json:"channel" validate:"required,oneof=EMAIL TELEGRAM SMS WHATSAPP"`
	Recipient         string            `json:"recipient" validate:"required,max=255"`
	Subject           string            `json:"subject" validate:"max=500"`
	Message           string            `json:"message"`
	TemplateCode      string            `json:"template_code"`
	TemplateVariables map[string]string `json:"template_variables"`
	Priority          domain.Priority   `json:"priority" validate:"omitempty,oneof=HIGH NORMAL LOW"`
	IdempotencyKey    string            `json:"idempotency_key" validate:"max=255"`
	CallbackURL       string            `json:"callback_url" validate:"omitempty,max=500,url"`
	Metadata          map[string]any    `json:"metadata"`
}

// SubmitResponse is returned on successful ingress [spec §6].
type SubmitResponse struct {
	NotificationID uuid.UUID     `json:"notification_id"`
	Status         domain.Status `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// StatusResponse is returned by GET /api/v1/status/{id} [spec §6].
type StatusResponse struct {
	ID           uuid.UUID      `json:"id"`
	Status       domain.Status  `json:"status"`
	Channel      domain.Channel `json:"channel"`
	Recipient    string         `json:"recipient"`
	CreatedAt    time.Time      `json:"created_at"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	RetryCount   int            `json:"retry_count"`
	ErrorMessage *string        `json:"error_message,omitempty"`
}

// ToStatusResponse projects a Notification into the masked, public status
// view [spec §6 "Recipient masking rule"].
func ToStatusResponse(n *domain.Notification) StatusResponse {
	return StatusResponse{
		ID:           n.ID,
		Status:       n.Status,
		Channel:      n.Channel,
		Recipient:    domain.MaskRecipient(n.Channel, n.Recipient),
		CreatedAt:    n.CreatedAt,
		SentAt:       n.SentAt,
		RetryCount:   n.RetryCount,
		ErrorMessage: n.ErrorMessage,
	}
}
