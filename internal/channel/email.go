package channel

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/insider-one/notify-dispatch/internal/config"
	"github.com/insider-one/notify-dispatch/internal/domain"
)

// htmlSentinels are the substrings that mark a body as HTML rather than
// plain text [spec §4.4].
var htmlSentinels = []string{"<!doctype", "<html", "<p>", "<div", "<br"}

// EmailAdapter sends mail over SMTP. No third-party SMTP client exists
// anywhere in the example pack this repository was grounded on, so this
// adapter is built directly on net/smtp.
type EmailAdapter struct {
	cfg     config.SMTPConfig
	logger  *slog.Logger
	enabled bool
	sender  func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailAdapter(cfg config.SMTPConfig, enabled bool, logger *slog.Logger) *EmailAdapter {
	return &EmailAdapter{cfg: cfg, logger: logger, enabled: enabled, sender: smtp.SendMail}
}

func (a *EmailAdapter) Name() domain.Channel { return domain.ChannelEmail }
func (a *EmailAdapter) IsEnabled() bool       { return a.enabled }
func (a *EmailAdapter) IsConfigured() bool    { return a.cfg.Host != "" && a.cfg.From != "" }

func (a *EmailAdapter) Send(ctx context.Context, recipient, subject, body string) SendResult {
	if !a.IsConfigured() {
		return fail("NOT_CONFIGURED", "smtp host/from not configured", false)
	}
	if subject == "" {
		subject = "Notification"
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port)
	var auth smtp.Auth
	if a.cfg.Username != "" {
		auth = smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.Host)
	}

	msg := buildMIMEMessage(a.cfg.From, recipient, subject, body)

	a.logger.Info("sending email",
		slog.String("to", domain.MaskRecipient(domain.ChannelEmail, recipient)))

	if err := a.sender(addr, auth, a.cfg.From, []string{recipient}, msg); err != nil {
		return classifySMTPError(err)
	}

	return ok(fmt.Sprintf("smtp-%d", time.Now().UnixNano()))
}

func buildMIMEMessage(from, to, subject, body string) []byte {
	contentType := "text/plain; charset=\"UTF-8\""
	lower := strings.ToLower(body)
	for _, sentinel := range htmlSentinels {
		if strings.Contains(lower, sentinel) {
			contentType = "text/html; charset=\"UTF-8\""
			break
		}
	}

	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: " + contentType + "\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}

// classifySMTPError distinguishes an address-invalid rejection (terminal)
// from a transport/protocol failure (transient) [spec §4.4].
func classifySMTPError(err error) SendResult {
	msg := strings.ToLower(err.Error())
	invalidAddressMarkers := []string{"no such user", "mailbox unavailable", "address rejected", "user unknown", "invalid recipient", "550", "553"}
	for _, marker := range invalidAddressMarkers {
		if strings.Contains(msg, marker) {
			return fail("INVALID_RECIPIENT", err.Error(), false)
		}
	}
	return fail("SMTP_ERROR", err.Error(), true)
}

func (a *EmailAdapter) HealthCheck(ctx context.Context) bool {
	addr := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port)
	conn, err := tls.Dial("tcp", addr, &tls.Config{InsecureSkipVerify: true})
	if err == nil {
		conn.Close()
		return true
	}

	c, err := smtp.Dial(addr)
	if err != nil {
		a.logger.Error("smtp health check failed", slog.String("error", err.Error()))
		return false
	}
	c.Close()
	return true
}
