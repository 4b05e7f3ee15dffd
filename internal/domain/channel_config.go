package domain

import (
	"context"
	"time"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "HEALTHY"
	HealthUnhealthy HealthStatus = "UNHEALTHY"
	HealthUnknown   HealthStatus = "UNKNOWN"
)

// ChannelConfig is a per-channel singleton row controlling adapter behavior.
type ChannelConfig struct {
	Channel         Channel
	Enabled         bool
	ProviderName    string
	Credentials     []byte
	Settings        map[string]any
	Priority        int
	DailyLimit      int
	DailySentCount  int
	HealthStatus    HealthStatus
	LastHealthCheck *time.Time
}

// ChannelConfigRepository persists ChannelConfig rows.
type ChannelConfigRepository interface {
	Get(ctx context.Context, channel Channel) (*ChannelConfig, error)
	SetHealth(ctx context.Context, channel Channel, status HealthStatus) error
	IncrementDailySent(ctx context.Context, channel Channel) (int, error)
	ResetDailyCounters(ctx context.Context) error
}
