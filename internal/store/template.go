package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// TemplateRepository implements domain.TemplateRepository using PostgreSQL.
type TemplateRepository struct {
	db *DB
}

func NewTemplateRepository(db *DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) GetActiveByCodeAndChannel(ctx context.Context, code string, channel domain.Channel) (*domain.MessageTemplate, error) {
	query := `
		SELECT id, code, name, channel, subject_template, body_template,
			variables, active, created_at, updated_at
		FROM message_templates
		WHERE code = $1 AND channel = $2 AND active = true
	`
	row := r.db.Pool.QueryRow(ctx, query, code, channel)

	t := &domain.MessageTemplate{}
	err := row.Scan(
		&t.ID, &t.Code, &t.Name, &t.Channel, &t.SubjectTemplate, &t.BodyTemplate,
		&t.Variables, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}
