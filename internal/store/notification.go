package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository using PostgreSQL.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}

	query := `
		INSERT INTO notifications (
			id, client_id, channel, recipient, subject, body, status, priority,
			retry_count, max_retries, next_retry_at, error_code, error_message,
			provider_message_id, idempotency_key, callback_url, metadata,
			created_at, updated_at, sent_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21
		)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		n.ID, n.ClientID, n.Channel, n.Recipient, n.Subject, n.Body, n.Status, n.Priority,
		n.RetryCount, n.MaxRetries, n.NextRetryAt, n.ErrorCode, n.ErrorMessage,
		n.ProviderMessageID, n.IdempotencyKey, n.CallbackURL, metadata,
		n.CreatedAt, n.UpdatedAt, n.SentAt, n.ExpiresAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") && strings.Contains(err.Error(), "idempotency_key") {
			return domain.ErrIdempotencyConflict
		}
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

const notificationColumns = `
	id, client_id, channel, recipient, subject, body, status, priority,
	retry_count, max_retries, next_retry_at, error_code, error_message,
	provider_message_id, idempotency_key, callback_url, metadata,
	created_at, updated_at, sent_at, expires_at
`

const notificationColumnsQualified = `
	n.id, n.client_id, n.channel, n.recipient, n.subject, n.body, n.status, n.priority,
	n.retry_count, n.max_retries, n.next_retry_at, n.error_code, n.error_message,
	n.provider_message_id, n.idempotency_key, n.callback_url, n.metadata,
	n.created_at, n.updated_at, n.sent_at, n.expires_at
`

func (r *NotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	query := `SELECT` + notificationColumns + `FROM notifications WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *NotificationRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Notification, error) {
	query := `SELECT` + notificationColumns + `FROM notifications WHERE idempotency_key = $1`
	return r.scanOne(ctx, query, key)
}

func (r *NotificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, errorCode, errorMessage *string) error {
	var query string
	var args []any
	if status == domain.StatusSent {
		query = `UPDATE notifications SET status = $2, error_code = $3, error_message = $4, sent_at = now(), updated_at = now(), next_retry_at = NULL WHERE id = $1`
	} else if status.IsTerminal() {
		query = `UPDATE notifications SET status = $2, error_code = $3, error_message = $4, updated_at = now(), next_retry_at = NULL WHERE id = $1`
	} else {
		query = `UPDATE notifications SET status = $2, error_code = $3, error_message = $4, updated_at = now() WHERE id = $1`
	}
	args = []any{id, status, errorCode, errorMessage}

	result, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) SetProviderMessageID(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	query := `UPDATE notifications SET provider_message_id = $2, updated_at = now() WHERE id = $1`
	result, err := r.db.Pool.Exec(ctx, query, id, providerMessageID)
	if err != nil {
		return fmt.Errorf("failed to set provider message id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) ScheduleRetry(ctx context.Context, id uuid.UUID, newRetryCount int, nextRetryAt time.Time, errorCode, errorMessage *string) error {
	query := `
		UPDATE notifications
		SET status = $2, retry_count = $3, next_retry_at = $4,
			error_code = $5, error_message = $6, updated_at = now()
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query, id, domain.StatusPending, newRetryCount, nextRetryAt, errorCode, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LeaseDueRetries leases up to limit due rows by marking them SENDING in the
// same statement that selects them, via FOR UPDATE SKIP LOCKED, so that two
// concurrent sweepers never pick the same row.
func (r *NotificationRepository) LeaseDueRetries(ctx context.Context, now time.Time, limit int) ([]*domain.Notification, error) {
	query := `
		UPDATE notifications n
		SET status = $2, updated_at = now()
		FROM (
			SELECT id FROM notifications
			WHERE status = $1 AND next_retry_at <= $3
				AND (expires_at IS NULL OR expires_at > $3)
			ORDER BY priority DESC, next_retry_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		) AS due
		WHERE n.id = due.id
		RETURNING ` + notificationColumnsQualified

	rows, err := r.db.Pool.Query(ctx, query, domain.StatusPending, domain.StatusSending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lease due retries: %w", err)
	}
	defer rows.Close()
	return r.scanRows(rows)
}

// ExpireOverdue transitions PENDING/SENDING rows whose expires_at has
// passed to EXPIRED.
func (r *NotificationRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]*domain.Notification, error) {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = now(), next_retry_at = NULL
		WHERE status IN ($2, $3) AND expires_at <= $4
		RETURNING` + notificationColumns

	rows, err := r.db.Pool.Query(ctx, query, domain.StatusExpired, domain.StatusPending, domain.StatusSending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire overdue notifications: %w", err)
	}
	defer rows.Close()
	return r.scanRows(rows)
}

// ReleaseStaleLeases returns SENDING rows whose updated_at is older than
// olderThan back to PENDING — run once at startup to recover from a crash
// mid-attempt.
func (r *NotificationRepository) ReleaseStaleLeases(ctx context.Context, olderThan time.Time) (int, error) {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = now()
		WHERE status = $2 AND updated_at < $3
	`
	result, err := r.db.Pool.Exec(ctx, query, domain.StatusPending, domain.StatusSending, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale leases: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func (r *NotificationRepository) ForceRetry(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET status = $2, retry_count = 0, next_retry_at = NULL,
			error_code = NULL, error_message = NULL, updated_at = now()
		WHERE id = $1 AND status IN ($3, $4)
	`
	result, err := r.db.Pool.Exec(ctx, query, id, domain.StatusPending, domain.StatusFailed, domain.StatusExpired)
	if err != nil {
		return fmt.Errorf("failed to force retry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) List(ctx context.Context, filter domain.NotificationFilter) (*domain.NotificationListResult, error) {
	conditions := []string{"1=1"}
	args := []any{}
	argIndex := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.Channel != nil {
		conditions = append(conditions, fmt.Sprintf("channel = $%d", argIndex))
		args = append(args, *filter.Channel)
		argIndex++
	}
	if filter.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", argIndex))
		args = append(args, *filter.ClientID)
		argIndex++
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *filter.StartDate)
		argIndex++
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIndex))
		args = append(args, *filter.EndDate)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notifications WHERE %s", whereClause)
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM notifications
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, strings.TrimSpace(notificationColumns), whereClause, argIndex, argIndex+1)

	args = append(args, pageSize, offset)
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()
	notifications, err := r.scanRows(rows)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &domain.NotificationListResult{
		Notifications: notifications,
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
		TotalPages:    totalPages,
	}, nil
}

func (r *NotificationRepository) Count(ctx context.Context, filter domain.NotificationFilter) (int64, error) {
	conditions := []string{"1=1"}
	args := []any{}
	argIndex := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.Channel != nil {
		conditions = append(conditions, fmt.Sprintf("channel = $%d", argIndex))
		args = append(args, *filter.Channel)
		argIndex++
	}
	if filter.ClientID != nil {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", argIndex))
		args = append(args, *filter.ClientID)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")
	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notifications WHERE %s", whereClause)
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return total, nil
}

func (r *NotificationRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.Notification, error) {
	row := r.db.Pool.QueryRow(ctx, query, args...)
	n, err := scanNotificationRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotificationRow(row rowScanner) (*domain.Notification, error) {
	n := &domain.Notification{}
	var metadata []byte

	err := row.Scan(
		&n.ID, &n.ClientID, &n.Channel, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.Priority,
		&n.RetryCount, &n.MaxRetries, &n.NextRetryAt, &n.ErrorCode, &n.ErrorMessage,
		&n.ProviderMessageID, &n.IdempotencyKey, &n.CallbackURL, &metadata,
		&n.CreatedAt, &n.UpdatedAt, &n.SentAt, &n.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		json.Unmarshal(metadata, &n.Metadata)
	}
	return n, nil
}

func (r *NotificationRepository) scanRows(rows pgx.Rows) ([]*domain.Notification, error) {
	notifications := make([]*domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotificationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}
