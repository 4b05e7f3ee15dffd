package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestChannel_IsValid(t *testing.T) {
	tests := []struct {
		name    string
		channel Channel
		want    bool
	}{
		{"valid email", ChannelEmail, true},
		{"valid telegram", ChannelTelegram, true},
		{"valid sms", ChannelSMS, true},
		{"valid whatsapp", ChannelWhatsApp, true},
		{"invalid channel", Channel("PUSH"), false},
		{"empty channel", Channel(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.channel.IsValid())
		})
	}
}

func TestPriority_Weight(t *testing.T) {
	tests := []struct {
		name     string
		priority Priority
		want     int64
	}{
		{"high priority", PriorityHigh, 0},
		{"normal priority", PriorityNormal, 1000000},
		{"low priority", PriorityLow, 2000000},
		{"invalid priority defaults to normal", Priority("invalid"), 1000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.priority.Weight())
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{"pending not terminal", StatusPending, false},
		{"sending not terminal", StatusSending, false},
		{"sent terminal", StatusSent, true},
		{"delivered terminal", StatusDelivered, true},
		{"failed terminal", StatusFailed, true},
		{"expired terminal", StatusExpired, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestBackoff_FollowsFixedTableAndCaps(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 1 * time.Minute},
		{1, 1 * time.Minute},
		{2, 5 * time.Minute},
		{3, 15 * time.Minute},
		{4, 60 * time.Minute},
		{5, 240 * time.Minute},
		{99, 240 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.retryCount))
	}
}

func TestNewNotification(t *testing.T) {
	clientID := uuid.New()
	n := NewNotification(clientID, ChannelEmail, "user@example.com", "Hi", "Hello", PriorityHigh, DefaultTTL)

	assert.NotNil(t, n)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, clientID, n.ClientID)
	assert.Equal(t, ChannelEmail, n.Channel)
	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, PriorityHigh, n.Priority)
	assert.Equal(t, DefaultMaxRetries, n.MaxRetries)
	assert.True(t, n.ExpiresAt.After(n.CreatedAt))
}

func TestNewNotification_DefaultsPriorityToNormal(t *testing.T) {
	n := NewNotification(uuid.New(), ChannelSMS, "+15551234567", "", "Hello", "", DefaultTTL)
	assert.Equal(t, PriorityNormal, n.Priority)
}

func TestMaskRecipient(t *testing.T) {
	tests := []struct {
		name      string
		channel   Channel
		recipient string
		want      string
	}{
		{"email long local part", ChannelEmail, "abcdef@example.com", "ab***@example.com"},
		{"email short local part", ChannelEmail, "ab@example.com", "***@example.com"},
		{"phone long enough", ChannelSMS, "+15551234567", "+155***67"},
		{"phone too short", ChannelWhatsApp, "12345", "***"},
		{"telegram handle", ChannelTelegram, "@somebody", "@som***dy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskRecipient(tt.channel, tt.recipient))
		})
	}
}
