package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ApiClient is a registered caller of the ingress API, identified by a
// hashed API key. The plain key is never stored.
type ApiClient struct {
	ID              uuid.UUID
	Name            string
	APIKeyHash      string
	APIKeyPrefix    string
	Active          bool
	RateLimit       int
	AllowedChannels []Channel
	CreatedAt       time.Time
	LastUsedAt      *time.Time
}

// AllowsChannel reports whether the client may submit to the given channel.
// An empty AllowedChannels set means "all channels".
func (c *ApiClient) AllowsChannel(channel Channel) bool {
	if len(c.AllowedChannels) == 0 {
		return true
	}
	for _, ch := range c.AllowedChannels {
		if ch == channel {
			return true
		}
	}
	return false
}

// ApiClientRepository persists ApiClient rows.
type ApiClientRepository interface {
	GetByAPIKeyHash(ctx context.Context, hash string) (*ApiClient, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}
