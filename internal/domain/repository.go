package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationRepository is the Store's contract over the notifications
// table [spec §4.1].
type NotificationRepository interface {
	Insert(ctx context.Context, n *Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Notification, error)

	// UpdateStatus transitions id to status, optionally recording an error.
	// When status is StatusSent, sent_at is set to now.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, errorCode, errorMessage *string) error

	SetProviderMessageID(ctx context.Context, id uuid.UUID, providerMessageID string) error

	// ScheduleRetry atomically sets status=PENDING, retry_count=newRetryCount,
	// next_retry_at=nextRetryAt, and records the transient error.
	ScheduleRetry(ctx context.Context, id uuid.UUID, newRetryCount int, nextRetryAt time.Time, errorCode, errorMessage *string) error

	// LeaseDueRetries returns up to limit rows due for a delivery attempt,
	// atomically marking each SENDING so no other sweeper picks it up.
	LeaseDueRetries(ctx context.Context, now time.Time, limit int) ([]*Notification, error)

	// ExpireOverdue transitions PENDING/SENDING rows whose expires_at has
	// passed to EXPIRED, returning the rows that were transitioned.
	ExpireOverdue(ctx context.Context, now time.Time) ([]*Notification, error)

	// ReleaseStaleLeases returns SENDING rows back to PENDING when they have
	// sat past the lease timeout — run once at startup.
	ReleaseStaleLeases(ctx context.Context, olderThan time.Time) (int, error)

	// ForceRetry resets a FAILED/EXPIRED row back to PENDING for replay
	// [spec §8 P5].
	ForceRetry(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, filter NotificationFilter) (*NotificationListResult, error)
	Count(ctx context.Context, filter NotificationFilter) (int64, error)
}
