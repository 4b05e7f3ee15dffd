package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel represents the notification delivery channel
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelTelegram Channel = "TELEGRAM"
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelTelegram, ChannelSMS, ChannelWhatsApp:
		return true
	}
	return false
}

// AllChannels lists every channel the router may register an adapter for.
func AllChannels() []Channel {
	return []Channel{ChannelEmail, ChannelTelegram, ChannelSMS, ChannelWhatsApp}
}

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// Weight returns the priority weight for scheduler/queue ordering (lower = higher priority).
func (p Priority) Weight() int64 {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2000000
	default:
		return 1000000
	}
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSending   Status = "SENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
	StatusExpired   Status = "EXPIRED"
)

// IsTerminal reports whether the status is not transitioned out of except
// by the explicit forceRetry admin operation.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// DefaultMaxRetries is the retry ceiling applied to a notification at ingress.
const DefaultMaxRetries = 5

// DefaultTTL is the default expires_at offset from created_at.
const DefaultTTL = 24 * time.Hour

// BackoffSchedule is the fixed delay table applied after the 1st, 2nd, ...
// failed attempt. Attempts beyond the table reuse the last entry.
var BackoffSchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
	240 * time.Minute,
}

// Backoff returns the delay to apply before the attempt numbered retryCount
// (1-indexed: the delay scheduled after the first failure is retryCount=1).
func Backoff(retryCount int) time.Duration {
	if retryCount <= 0 {
		return BackoffSchedule[0]
	}
	idx := retryCount - 1
	if idx >= len(BackoffSchedule) {
		idx = len(BackoffSchedule) - 1
	}
	return BackoffSchedule[idx]
}

// Notification is the central entity of the dispatch pipeline.
type Notification struct {
	ID                uuid.UUID
	ClientID          uuid.UUID
	Channel           Channel
	Recipient         string
	Subject           string
	Body              string
	Status            Status
	Priority          Priority
	RetryCount        int
	MaxRetries        int
	NextRetryAt       *time.Time
	ErrorCode         *string
	ErrorMessage      *string
	ProviderMessageID *string
	IdempotencyKey    *string
	CallbackURL       string
	Metadata          map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
	SentAt            *time.Time
	ExpiresAt         time.Time
}

// NewNotification builds a notification row in its initial PENDING state.
func NewNotification(clientID uuid.UUID, channel Channel, recipient, subject, body string, priority Priority, ttl time.Duration) *Notification {
	now := time.Now().UTC()
	if priority == "" {
		priority = PriorityNormal
	}
	return &Notification{
		ID:         uuid.New(),
		ClientID:   clientID,
		Channel:    channel,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		Status:     StatusPending,
		Priority:   priority,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

// MaskRecipient applies the spec's masking rule: EMAIL shows "ab***@domain"
// (or "***@domain" when the local part has 2 characters or fewer); every
// other channel shows 4+2 characters ("abcd***yz"), or "***" when the whole
// value is shorter than 6 characters.
func MaskRecipient(channel Channel, recipient string) string {
	if channel == ChannelEmail {
		return maskEmail(recipient)
	}
	return maskGeneric(recipient)
}

func maskEmail(addr string) string {
	at := -1
	for i, r := range addr {
		if r == '@' {
			at = i
			break
		}
	}
	if at < 0 {
		return maskGeneric(addr)
	}
	local, domain := addr[:at], addr[at:]
	if len(local) <= 2 {
		return "***" + domain
	}
	return local[:2] + "***" + domain
}

func maskGeneric(s string) string {
	if len(s) < 6 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-2:]
}

// NotificationFilter scopes an admin-style listing query.
type NotificationFilter struct {
	Status    *Status
	Channel   *Channel
	ClientID  *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

type NotificationListResult struct {
	Notifications []*Notification
	Total         int64
	Page          int
	PageSize      int
	TotalPages    int
}
