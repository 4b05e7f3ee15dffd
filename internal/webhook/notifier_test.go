package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifier_Fire_SignsAndDeliversPayload(t *testing.T) {
	var receivedBody []byte
	var receivedSignature string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		receivedBody = body
		receivedSignature = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	secret := "test-secret"
	n := New(secret, 5*time.Second, discardLogger())

	notif := &domain.Notification{
		ID:          uuid.New(),
		Channel:     domain.ChannelEmail,
		Recipient:   "someone@example.com",
		CallbackURL: server.URL,
	}

	n.Fire(context.Background(), notif, EventSent, "")

	require.NotEmpty(t, receivedBody)
	assert.True(t, strings.HasPrefix(receivedSignature, "sha256="))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(receivedBody)
	expected := "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, expected, receivedSignature)

	var payload Payload
	require.NoError(t, json.Unmarshal(receivedBody, &payload))
	assert.Equal(t, "SENT", payload.Event)
	assert.Equal(t, notif.ID.String(), payload.NotificationID)
}

func TestNotifier_Fire_NoOpWithoutCallbackURL(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	n := New("secret", 5*time.Second, discardLogger())
	notif := &domain.Notification{ID: uuid.New(), Channel: domain.ChannelSMS}

	n.Fire(context.Background(), notif, EventFailed, "")
	assert.False(t, called)
}
