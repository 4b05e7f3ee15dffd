package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/insider-one/notify-dispatch/internal/config"
)

func TestNormalizeE164(t *testing.T) {
	cases := map[string]string{
		"+15555550100":  "+15555550100",
		"89261234567":   "+79261234567",
		"9261234567":    "9261234567",
		"+7 (926) 123-45-67": "+79261234567",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeE164(in), "input %q", in)
	}
}

func TestSMSAdapter_Send_NotConfigured(t *testing.T) {
	a := NewSMSAdapter(config.SMSConfig{}, true, time.Second, silentLogger())
	result := a.Send(context.Background(), "+15555550100", "", "hi")
	assert.False(t, result.OK)
	assert.Equal(t, "NOT_CONFIGURED", result.ErrorCode)
}

func TestSMSAdapter_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("gw-msg-1"))
	}))
	defer server.Close()

	a := NewSMSAdapter(config.SMSConfig{GatewayURL: server.URL, Sender: "ACME"}, true, time.Second, silentLogger())
	result := a.Send(context.Background(), "+15555550100", "", "hi")
	assert.True(t, result.OK)
	assert.Equal(t, "gw-msg-1", result.ProviderMessageID)
}

func TestSMSAdapter_Send_BadRequestIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid number"))
	}))
	defer server.Close()

	a := NewSMSAdapter(config.SMSConfig{GatewayURL: server.URL}, true, time.Second, silentLogger())
	result := a.Send(context.Background(), "not-a-number", "", "hi")
	assert.False(t, result.OK)
	assert.Equal(t, "INVALID_RECIPIENT", result.ErrorCode)
	assert.False(t, result.Retryable)
}

func TestSMSAdapter_Send_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := NewSMSAdapter(config.SMSConfig{GatewayURL: server.URL}, true, time.Second, silentLogger())
	result := a.Send(context.Background(), "+15555550100", "", "hi")
	assert.False(t, result.OK)
	assert.Equal(t, "API_ERROR", result.ErrorCode)
	assert.True(t, result.Retryable)
}
