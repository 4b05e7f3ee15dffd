package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// IngressConsumer drains IngressQueue and submits each notification's
// first delivery attempt to the shared worker pool [spec §5].
type IngressConsumer struct {
	queue   *IngressQueue
	store   domain.NotificationRepository
	pool    *Pool
	deliver DeliverFunc
	logger  *slog.Logger

	idleBackoff time.Duration
}

func NewIngressConsumer(queue *IngressQueue, store domain.NotificationRepository, pool *Pool, deliver DeliverFunc, logger *slog.Logger) *IngressConsumer {
	return &IngressConsumer{
		queue:       queue,
		store:       store,
		pool:        pool,
		deliver:     deliver,
		logger:      logger,
		idleBackoff: 250 * time.Millisecond,
	}
}

// Run blocks, popping the queue until ctx is cancelled.
func (c *IngressConsumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		id, ok, err := c.queue.Pop(ctx)
		if err != nil {
			c.logger.Error("failed to pop ingress queue", slog.String("error", err.Error()))
			c.sleep(ctx)
			continue
		}
		if !ok {
			c.sleep(ctx)
			continue
		}

		n, err := c.store.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.logger.Warn("ingress queue referenced unknown notification", slog.String("notification_id", id.String()))
				continue
			}
			c.logger.Error("failed to load ingress notification",
				slog.String("notification_id", id.String()), slog.String("error", err.Error()))
			continue
		}

		// A row already past PENDING (e.g. picked up by a concurrent
		// scheduler lease, or already terminal) is skipped.
		if n.Status != domain.StatusPending {
			continue
		}

		notif := n
		if !c.pool.Submit(func(taskCtx context.Context) {
			c.deliver(taskCtx, notif)
		}) {
			c.logger.Warn("dropped ingress item, pool saturated, re-queueing",
				slog.String("notification_id", notif.ID.String()))
			if err := c.queue.Enqueue(ctx, notif.ID, notif.Priority); err != nil {
				c.logger.Error("failed to re-queue saturated ingress item", slog.String("error", err.Error()))
			}
		}
	}
}

func (c *IngressConsumer) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.idleBackoff):
	}
}
