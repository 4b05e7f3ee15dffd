package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditRepository persists best-effort audit records [spec §4.6 step 5].
// Failures are logged and swallowed by Record — audit never fails ingress.
type AuditRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewAuditRepository(db *DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Record inserts an (action, entity_id, occurred_at, detail) row. Errors are
// logged, not returned, so a failing audit write never fails the caller.
func (r *AuditRepository) Record(ctx context.Context, action string, entityID uuid.UUID, detail string) {
	query := `
		INSERT INTO audit_records (id, action, entity_id, occurred_at, detail)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pool.Exec(ctx, query, uuid.New(), action, entityID, time.Now().UTC(), detail)
	if err != nil {
		r.logger.Error("audit record write failed",
			slog.String("action", action),
			slog.String("entity_id", entityID.String()),
			slog.String("error", fmt.Sprint(err)),
		)
	}
}
