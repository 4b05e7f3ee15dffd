package channel

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/insider-one/notify-dispatch/internal/config"
	"github.com/insider-one/notify-dispatch/internal/domain"
)

var nonDigitPattern = regexp.MustCompile(`[^0-9]`)

// normalizeE164 keeps a leading '+', strips every other non-digit, and maps
// the common 11-digit domestic form 8XXXXXXXXXX to +7XXXXXXXXXX
// [spec §4.4].
func normalizeE164(recipient string) string {
	hasPlus := strings.HasPrefix(recipient, "+")
	digits := nonDigitPattern.ReplaceAllString(recipient, "")

	if len(digits) == 11 && strings.HasPrefix(digits, "8") {
		return "+7" + digits[1:]
	}
	if hasPlus {
		return "+" + digits
	}
	return digits
}

// SMSAdapter posts a form-encoded request to a generic HTTP SMS gateway.
// The spec names no concrete vendor, so this targets a generic REST
// gateway over net/http, classifying its own retryable errors rather than
// adopting a vendor SDK the example pack does not otherwise exercise.
type SMSAdapter struct {
	cfg     config.SMSConfig
	client  *http.Client
	logger  *slog.Logger
	enabled bool
}

func NewSMSAdapter(cfg config.SMSConfig, enabled bool, timeout time.Duration, logger *slog.Logger) *SMSAdapter {
	return &SMSAdapter{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		enabled: enabled,
	}
}

func (a *SMSAdapter) Name() domain.Channel { return domain.ChannelSMS }
func (a *SMSAdapter) IsEnabled() bool       { return a.enabled }
func (a *SMSAdapter) IsConfigured() bool    { return a.cfg.GatewayURL != "" }

func (a *SMSAdapter) Send(ctx context.Context, recipient, subject, body string) SendResult {
	if !a.IsConfigured() {
		return fail("NOT_CONFIGURED", "sms gateway url not configured", false)
	}

	to := normalizeE164(recipient)
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", a.cfg.Sender)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.GatewayURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fail("API_ERROR", err.Error(), true)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	a.logger.Info("sending sms", slog.String("to", domain.MaskRecipient(domain.ChannelSMS, recipient)))

	resp, err := a.client.Do(req)
	if err != nil {
		return fail("API_ERROR", err.Error(), true)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return ok(gatewayMessageID(respBody))
	case resp.StatusCode == http.StatusBadRequest:
		return fail("INVALID_RECIPIENT", string(respBody), false)
	case resp.StatusCode >= 500:
		return fail("API_ERROR", string(respBody), true)
	default:
		return fail("API_ERROR", string(respBody), true)
	}
}

// gatewayMessageID extracts a best-effort id from the gateway response
// body, falling back to a synthesized one when the body carries none.
func gatewayMessageID(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && len(trimmed) < 128 {
		return trimmed
	}
	return "sms-" + time.Now().UTC().Format("20060102150405.000000")
}

func (a *SMSAdapter) HealthCheck(ctx context.Context) bool {
	if !a.IsConfigured() {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.GatewayURL, nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
