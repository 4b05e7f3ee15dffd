package channel

import (
	"context"
	"log/slog"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// WhatsAppAdapter is structurally present but functionally unimplemented,
// matching the source's WhatsApp surface [spec §4.4, §9]. It always
// declares itself unconfigured and fails NOT_CONFIGURED until a real
// WhatsApp Business API client is wired in.
type WhatsAppAdapter struct {
	logger  *slog.Logger
	enabled bool

	// TODO: wire the WhatsApp Business Cloud API client here once
	// credentials are provisioned.
}

func NewWhatsAppAdapter(enabled bool, logger *slog.Logger) *WhatsAppAdapter {
	return &WhatsAppAdapter{logger: logger, enabled: enabled}
}

func (a *WhatsAppAdapter) Name() domain.Channel { return domain.ChannelWhatsApp }
func (a *WhatsAppAdapter) IsEnabled() bool       { return a.enabled }
func (a *WhatsAppAdapter) IsConfigured() bool    { return false }

func (a *WhatsAppAdapter) Send(ctx context.Context, recipient, subject, body string) SendResult {
	a.logger.Warn("whatsapp send attempted without configured credentials",
		slog.String("to", domain.MaskRecipient(domain.ChannelWhatsApp, recipient)))
	return fail("NOT_CONFIGURED", "whatsapp adapter has no credentials configured", false)
}

// HealthCheck always reports unhealthy; the adapter is omitted from health
// rollups by the router instead of being treated as a live dependency.
func (a *WhatsAppAdapter) HealthCheck(ctx context.Context) bool {
	return false
}
