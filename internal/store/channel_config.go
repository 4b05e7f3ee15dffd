package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// ChannelConfigRepository implements domain.ChannelConfigRepository using PostgreSQL.
type ChannelConfigRepository struct {
	db *DB
}

func NewChannelConfigRepository(db *DB) *ChannelConfigRepository {
	return &ChannelConfigRepository{db: db}
}

func (r *ChannelConfigRepository) Get(ctx context.Context, channel domain.Channel) (*domain.ChannelConfig, error) {
	query := `
		SELECT channel, enabled, provider_name, credentials, settings, priority,
			daily_limit, daily_sent_count, health_status, last_health_check
		FROM channel_configs
		WHERE channel = $1
	`
	row := r.db.Pool.QueryRow(ctx, query, channel)

	c := &domain.ChannelConfig{}
	var settings []byte
	err := row.Scan(
		&c.Channel, &c.Enabled, &c.ProviderName, &c.Credentials, &settings, &c.Priority,
		&c.DailyLimit, &c.DailySentCount, &c.HealthStatus, &c.LastHealthCheck,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get channel config: %w", err)
	}

	if len(settings) > 0 {
		json.Unmarshal(settings, &c.Settings)
	}
	return c, nil
}

func (r *ChannelConfigRepository) SetHealth(ctx context.Context, channel domain.Channel, status domain.HealthStatus) error {
	query := `UPDATE channel_configs SET health_status = $2, last_health_check = now() WHERE channel = $1`
	_, err := r.db.Pool.Exec(ctx, query, channel, status)
	if err != nil {
		return fmt.Errorf("failed to set channel health: %w", err)
	}
	return nil
}

// IncrementDailySent atomically bumps the daily counter and returns its new
// value, so the adapter/router can reject the send in the same round trip
// when it would exceed ChannelConfig.daily_limit.
func (r *ChannelConfigRepository) IncrementDailySent(ctx context.Context, channel domain.Channel) (int, error) {
	query := `
		UPDATE channel_configs
		SET daily_sent_count = daily_sent_count + 1
		WHERE channel = $1
		RETURNING daily_sent_count
	`
	var count int
	if err := r.db.Pool.QueryRow(ctx, query, channel).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment daily sent count: %w", err)
	}
	return count, nil
}

// ResetDailyCounters zeroes every channel's daily_sent_count — invoked by
// the UTC-midnight maintenance ticker.
func (r *ChannelConfigRepository) ResetDailyCounters(ctx context.Context) error {
	query := `UPDATE channel_configs SET daily_sent_count = 0`
	_, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to reset daily counters: %w", err)
	}
	return nil
}
