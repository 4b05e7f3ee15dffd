package channel

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

type stubAdapter struct {
	name      domain.Channel
	enabled   bool
	configured bool
	result    SendResult
	healthy   bool
	calls     int
}

func (s *stubAdapter) Send(ctx context.Context, recipient, subject, body string) SendResult {
	s.calls++
	return s.result
}
func (s *stubAdapter) HealthCheck(ctx context.Context) bool { return s.healthy }
func (s *stubAdapter) Name() domain.Channel                 { return s.name }
func (s *stubAdapter) IsEnabled() bool                      { return s.enabled }
func (s *stubAdapter) IsConfigured() bool                   { return s.configured }

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouter_Send_UnregisteredChannel(t *testing.T) {
	r := NewRouter(nil, silentLogger())
	result := r.Send(context.Background(), domain.ChannelEmail, "a@b.com", "subj", "body")
	assert.False(t, result.OK)
	assert.Equal(t, "UNKNOWN_CHANNEL", result.ErrorCode)
	assert.False(t, result.Retryable)
}

func TestRouter_Send_DisabledChannel(t *testing.T) {
	r := NewRouter(nil, silentLogger())
	r.Register(&stubAdapter{name: domain.ChannelEmail, enabled: false})
	result := r.Send(context.Background(), domain.ChannelEmail, "a@b.com", "subj", "body")
	assert.False(t, result.OK)
	assert.Equal(t, "CHANNEL_DISABLED", result.ErrorCode)
}

func TestRouter_SendWithFallback_CascadesOnlyOnRetryableFailure(t *testing.T) {
	primary := &stubAdapter{name: domain.ChannelEmail, enabled: true, configured: true,
		result: fail("SMTP_ERROR", "temporary failure", true)}
	fallback := &stubAdapter{name: domain.ChannelSMS, enabled: true, configured: true,
		result: ok("msg-123")}

	r := NewRouter(nil, silentLogger())
	r.Register(primary)
	r.Register(fallback)

	result, usedChannel := r.SendWithFallback(context.Background(), domain.ChannelEmail, "+1555", "subj", "body")

	require.True(t, result.OK)
	assert.Equal(t, domain.ChannelSMS, usedChannel)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestRouter_SendWithFallback_NeverCascadesOnTerminalFailure(t *testing.T) {
	primary := &stubAdapter{name: domain.ChannelEmail, enabled: true, configured: true,
		result: fail("INVALID_RECIPIENT", "bad address", false)}
	fallback := &stubAdapter{name: domain.ChannelSMS, enabled: true, configured: true,
		result: ok("msg-123")}

	r := NewRouter(nil, silentLogger())
	r.Register(primary)
	r.Register(fallback)

	result, usedChannel := r.SendWithFallback(context.Background(), domain.ChannelEmail, "not-an-email", "subj", "body")

	assert.False(t, result.OK)
	assert.Equal(t, domain.ChannelEmail, usedChannel)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls)
}

func TestRouter_SendWithFallback_SMSFallsBackToEmail(t *testing.T) {
	primary := &stubAdapter{name: domain.ChannelSMS, enabled: true, configured: true,
		result: fail("API_ERROR", "gateway down", true)}
	fallback := &stubAdapter{name: domain.ChannelEmail, enabled: true, configured: true,
		result: ok("msg-456")}

	r := NewRouter(nil, silentLogger())
	r.Register(primary)
	r.Register(fallback)

	// SMS's default fallback is EMAIL, so a retryable SMS failure cascades
	// and the EMAIL result is returned.
	result, usedChannel := r.SendWithFallback(context.Background(), domain.ChannelSMS, "+1555", "subj", "body")
	require.True(t, result.OK)
	assert.Equal(t, domain.ChannelEmail, usedChannel)
}

func TestRouter_HealthCheckAll_SkipsWhatsApp(t *testing.T) {
	r := NewRouter(nil, silentLogger())
	r.Register(&stubAdapter{name: domain.ChannelEmail, enabled: true, healthy: true})
	r.Register(&stubAdapter{name: domain.ChannelWhatsApp, enabled: false, healthy: false})

	statuses := r.HealthCheckAll(context.Background())
	assert.Contains(t, statuses, domain.ChannelEmail)
	assert.NotContains(t, statuses, domain.ChannelWhatsApp)
}
