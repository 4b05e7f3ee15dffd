package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// ApiClientRepository implements domain.ApiClientRepository using PostgreSQL.
type ApiClientRepository struct {
	db *DB
}

func NewApiClientRepository(db *DB) *ApiClientRepository {
	return &ApiClientRepository{db: db}
}

func (r *ApiClientRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.ApiClient, error) {
	query := `
		SELECT id, name, api_key_hash, api_key_prefix, active, rate_limit,
			allowed_channels, created_at, last_used_at
		FROM api_clients
		WHERE api_key_hash = $1
	`
	row := r.db.Pool.QueryRow(ctx, query, hash)

	c := &domain.ApiClient{}
	var allowedChannels []string
	err := row.Scan(
		&c.ID, &c.Name, &c.APIKeyHash, &c.APIKeyPrefix, &c.Active, &c.RateLimit,
		&allowedChannels, &c.CreatedAt, &c.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	c.AllowedChannels = make([]domain.Channel, 0, len(allowedChannels))
	for _, ch := range allowedChannels {
		c.AllowedChannels = append(c.AllowedChannels, domain.Channel(ch))
	}
	return c, nil
}

func (r *ApiClientRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE api_clients SET last_used_at = now() WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to touch last_used_at: %w", err)
	}
	return nil
}
