package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/insider-one/notify-dispatch/internal/domain"
	"github.com/insider-one/notify-dispatch/internal/webhook"
)

// DeliverFunc performs a single delivery attempt against n, mutating and
// persisting its status as a side effect. It is a function value rather
// than an interface so this package never imports the dispatch package
// that implements it; dispatch does not import retry either (it declares
// its own Enqueuer), and main.go wires the two together.
type DeliverFunc func(ctx context.Context, n *domain.Notification)

// Scheduler is the periodic sweep that leases due retries and expires
// overdue notifications [spec §4.7].
type Scheduler struct {
	store        domain.NotificationRepository
	pool         *Pool
	deliver      DeliverFunc
	webhook      *webhook.Notifier
	pollInterval time.Duration
	batchLimit   int
	leaseTimeout time.Duration
	logger       *slog.Logger
}

func NewScheduler(
	store domain.NotificationRepository,
	pool *Pool,
	deliver DeliverFunc,
	webhookNotifier *webhook.Notifier,
	pollInterval time.Duration,
	batchLimit int,
	leaseTimeout time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		store:        store,
		pool:         pool,
		deliver:      deliver,
		webhook:      webhookNotifier,
		pollInterval: pollInterval,
		batchLimit:   batchLimit,
		leaseTimeout: leaseTimeout,
		logger:       logger,
	}
}

// Run blocks, ticking at pollInterval until ctx is cancelled. It releases
// any leases stranded by a previous unclean shutdown once before the
// first tick [spec §5 "startup recovery"].
func (s *Scheduler) Run(ctx context.Context) {
	if released, err := s.store.ReleaseStaleLeases(ctx, time.Now().Add(-s.leaseTimeout)); err != nil {
		s.logger.Error("failed to release stale leases at startup", slog.String("error", err.Error()))
	} else if released > 0 {
		s.logger.Info("released stale leases at startup", slog.Int("count", released))
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
			s.sweepExpired(ctx)
		}
	}
}

// tick leases due rows and submits each to the shared worker pool.
func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.store.LeaseDueRetries(ctx, time.Now(), s.batchLimit)
	if err != nil {
		s.logger.Error("failed to lease due retries", slog.String("error", err.Error()))
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info("leased due retries", slog.Int("count", len(due)))

	for _, n := range due {
		notif := n
		if !s.pool.Submit(func(taskCtx context.Context) {
			s.deliver(taskCtx, notif)
		}) {
			s.logger.Warn("dropped leased retry, pool saturated",
				slog.String("notification_id", notif.ID.String()))
			// Return the row to PENDING and due now so the next tick leases it again.
			if err := s.store.ScheduleRetry(ctx, notif.ID, notif.RetryCount, time.Now(), notif.ErrorCode, notif.ErrorMessage); err != nil {
				s.logger.Error("failed to release dropped lease",
					slog.String("notification_id", notif.ID.String()), slog.String("error", err.Error()))
			}
		}
	}
}

// sweepExpired transitions past-expiry rows to EXPIRED and fires the
// failure webhook for each [spec §4.6 "expiry"].
func (s *Scheduler) sweepExpired(ctx context.Context) {
	expired, err := s.store.ExpireOverdue(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to expire overdue notifications", slog.String("error", err.Error()))
		return
	}
	if len(expired) == 0 {
		return
	}
	s.logger.Info("expired overdue notifications", slog.Int("count", len(expired)))

	errCode := "EXPIRED"
	errMsg := "notification expired before a successful delivery"
	for _, n := range expired {
		n.ErrorCode = &errCode
		n.ErrorMessage = &errMsg
		s.webhook.Fire(ctx, n, webhook.EventFailed, "")
	}
}
