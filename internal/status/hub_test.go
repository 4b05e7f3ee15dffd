package status

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_ShouldReceive_NilFilterMatchesEverything(t *testing.T) {
	c := &Client{}
	n := &domain.Notification{ID: uuid.New(), Channel: domain.ChannelEmail}
	assert.True(t, c.shouldReceive(n))
}

func TestClient_ShouldReceive_EmptyFilterMatchesEverything(t *testing.T) {
	c := &Client{filter: &Filter{}}
	n := &domain.Notification{ID: uuid.New(), Channel: domain.ChannelEmail}
	assert.True(t, c.shouldReceive(n))
}

func TestClient_ShouldReceive_FiltersByChannel(t *testing.T) {
	c := &Client{filter: &Filter{Channels: []domain.Channel{domain.ChannelSMS}}}
	matching := &domain.Notification{ID: uuid.New(), Channel: domain.ChannelSMS}
	other := &domain.Notification{ID: uuid.New(), Channel: domain.ChannelEmail}

	assert.True(t, c.shouldReceive(matching))
	assert.False(t, c.shouldReceive(other))
}

func TestClient_ShouldReceive_FiltersByNotificationID(t *testing.T) {
	id := uuid.New()
	c := &Client{filter: &Filter{NotificationIDs: []uuid.UUID{id}}}

	assert.True(t, c.shouldReceive(&domain.Notification{ID: id, Channel: domain.ChannelEmail}))
	assert.False(t, c.shouldReceive(&domain.Notification{ID: uuid.New(), Channel: domain.ChannelEmail}))
}

func TestHub_Broadcast_DropsWhenChannelFull(t *testing.T) {
	h := NewHub(discardLogger())
	// Do not start Run(); fill the buffered channel to its cap of 256.
	for i := 0; i < 256; i++ {
		h.Broadcast(&domain.Notification{ID: uuid.New(), Channel: domain.ChannelEmail})
	}
	// The 257th call must not block.
	done := make(chan struct{})
	go func() {
		h.Broadcast(&domain.Notification{ID: uuid.New(), Channel: domain.ChannelEmail})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked instead of dropping")
	}
}

func TestHub_ClientCount_StartsAtZero(t *testing.T) {
	h := NewHub(discardLogger())
	assert.Equal(t, 0, h.ClientCount())
}
