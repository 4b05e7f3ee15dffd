package channel

import (
	"context"
	"log/slog"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// defaultFallback is the fallback map applied when the caller does not
// override it [spec §4.5].
var defaultFallback = map[domain.Channel]domain.Channel{
	domain.ChannelEmail:    domain.ChannelSMS,
	domain.ChannelSMS:      domain.ChannelEmail,
	domain.ChannelTelegram: domain.ChannelEmail,
	domain.ChannelWhatsApp: domain.ChannelTelegram,
}

// Router maintains the adapter registry and orchestrates the fallback
// chain [spec §4.5].
type Router struct {
	adapters map[domain.Channel]Adapter
	configs  domain.ChannelConfigRepository
	logger   *slog.Logger
}

func NewRouter(configs domain.ChannelConfigRepository, logger *slog.Logger) *Router {
	return &Router{
		adapters: make(map[domain.Channel]Adapter),
		configs:  configs,
		logger:   logger,
	}
}

// Register adds an adapter to the immutable-after-startup registry.
func (r *Router) Register(adapter Adapter) {
	r.adapters[adapter.Name()] = adapter
}

// DefaultFallback returns the configured fallback channel for primary, if
// any.
func (r *Router) DefaultFallback(primary domain.Channel) (domain.Channel, bool) {
	fb, ok := defaultFallback[primary]
	return fb, ok
}

// Send delivers through a single named channel.
func (r *Router) Send(ctx context.Context, ch domain.Channel, recipient, subject, body string) SendResult {
	adapter, registered := r.adapters[ch]
	if !registered {
		return fail("UNKNOWN_CHANNEL", "no adapter registered for channel "+string(ch), false)
	}
	if !adapter.IsEnabled() {
		return fail("CHANNEL_DISABLED", "channel "+string(ch)+" is disabled", false)
	}

	if r.configs != nil {
		if cfg, err := r.configs.Get(ctx, ch); err == nil && cfg.DailyLimit > 0 {
			count, err := r.configs.IncrementDailySent(ctx, ch)
			if err == nil && count > cfg.DailyLimit {
				return fail("DAILY_LIMIT_EXCEEDED", "channel "+string(ch)+" exceeded its daily send limit", false)
			}
		}
	}

	return adapter.Send(ctx, recipient, subject, body)
}

// SendWithFallback attempts primary; the fallback is only attempted when
// primary's failure is retryable — terminal validation errors never
// cascade [spec §4.5].
func (r *Router) SendWithFallback(ctx context.Context, primary domain.Channel, recipient, subject, body string) (SendResult, domain.Channel) {
	result := r.Send(ctx, primary, recipient, subject, body)
	if result.OK || !result.Retryable {
		return result, primary
	}

	fallback, hasFallback := r.DefaultFallback(primary)
	if !hasFallback {
		return result, primary
	}

	r.logger.Info("falling back after retryable primary failure",
		slog.String("primary", string(primary)),
		slog.String("fallback", string(fallback)),
		slog.String("error_code", result.ErrorCode))

	fallbackResult := r.Send(ctx, fallback, recipient, subject, body)
	if fallbackResult.OK {
		return fallbackResult, fallback
	}
	return result, primary
}

// HealthCheckAll pings every registered adapter. The WhatsApp placeholder
// is omitted from the rollup [spec §9].
func (r *Router) HealthCheckAll(ctx context.Context) map[domain.Channel]bool {
	statuses := make(map[domain.Channel]bool, len(r.adapters))
	for name, adapter := range r.adapters {
		if name == domain.ChannelWhatsApp {
			continue
		}
		statuses[name] = adapter.HealthCheck(ctx)
	}
	return statuses
}
