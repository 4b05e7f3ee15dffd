// Package webhook implements the Webhook Notifier [spec §4.8]: a
// fire-and-forget, HMAC-signed HTTP POST reporting a notification's
// terminal outcome, grounded on the shape of
// the-monkeys-freerangenotify's webhook_provider.go — diverging from it
// on the wire format, which the spec fixes to base64 rather than hex.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// Event is the outcome reported to the callback URL.
type Event string

const (
	EventSent   Event = "SENT"
	EventFailed Event = "FAILED"
)

// Payload is the exact JSON body fired to callback_url [spec §4.8].
type Payload struct {
	Event             string         `json:"event"`
	NotificationID    string         `json:"notification_id"`
	Channel           string         `json:"channel"`
	Recipient         string         `json:"recipient"`
	Status            string         `json:"status"`
	Timestamp         string         `json:"timestamp"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	ErrorCode         string         `json:"error_code,omitempty"`
	RetryCount        *int           `json:"retry_count,omitempty"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
}

// Notifier fires signed webhook POSTs. Failures are logged, never
// propagated — webhook delivery has no core-state consequence.
type Notifier struct {
	client *http.Client
	secret string
	logger *slog.Logger
}

func New(secret string, timeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: timeout},
		secret: secret,
		logger: logger,
	}
}

// Fire builds and sends the payload for n's outcome. usedChannel, when
// non-empty, overrides n.Channel in the payload (a fallback send).
func (n *Notifier) Fire(ctx context.Context, notif *domain.Notification, event Event, usedChannel domain.Channel) {
	if notif.CallbackURL == "" {
		return
	}

	channel := notif.Channel
	if usedChannel != "" {
		channel = usedChannel
	}

	payload := Payload{
		Event:          string(event),
		NotificationID: notif.ID.String(),
		Channel:        string(channel),
		Recipient:      domain.MaskRecipient(notif.Channel, notif.Recipient),
		Status:         string(event),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Metadata:       notif.Metadata,
	}

	if event == EventFailed {
		if notif.ErrorMessage != nil {
			payload.ErrorMessage = *notif.ErrorMessage
		}
		if notif.ErrorCode != nil {
			payload.ErrorCode = *notif.ErrorCode
		}
		retryCount := notif.RetryCount
		payload.RetryCount = &retryCount
	}
	if event == EventSent && notif.ProviderMessageID != nil {
		payload.ProviderMessageID = *notif.ProviderMessageID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("failed to marshal webhook payload", slog.String("error", err.Error()))
		return
	}

	if err := n.post(ctx, notif.CallbackURL, body, string(event)); err != nil {
		n.logger.Warn("webhook delivery failed",
			slog.String("notification_id", notif.ID.String()),
			slog.String("error", err.Error()))
	}
}

func (n *Notifier) post(ctx context.Context, url string, body []byte, event string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", sign(n.secret, body))
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	req.Header.Set("X-Webhook-Event", event)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// sign computes "sha256=" || base64(HMAC_SHA256(secret, body)) [spec §4.8,
// L4] — base64, not hex, which is where this diverges from the
// freerangenotify reference it is otherwise modeled on.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
