// Package dispatch implements the Dispatcher [spec §4.6]: request
// validation, template rendering, idempotency enforcement, persistence,
// and the single delivery attempt invoked by both ingress and the retry
// scheduler.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/insider-one/notify-dispatch/internal/channel"
	"github.com/insider-one/notify-dispatch/internal/domain"
	"github.com/insider-one/notify-dispatch/internal/webhook"
)

// StatusBroadcaster pushes a notification's updated status to subscribed
// websocket clients. Implemented by internal/status, wired in main.go, and
// kept as a function value for the same import-cycle-avoidance reason as
// retry.DeliverFunc.
type StatusBroadcaster func(n *domain.Notification)

// Dispatcher wires together the Store, Router, Webhook Notifier, and
// ingress queue behind the two operations the rest of the system calls:
// Submit (ingress) and Deliver (a single attempt, first or retried).
type Dispatcher struct {
	store     domain.NotificationRepository
	clients   domain.ApiClientRepository
	templates domain.TemplateRepository
	audit     AuditRecorder
	router    *channel.Router
	webhook   *webhook.Notifier
	ingress   Enqueuer
	broadcast StatusBroadcaster
	logger    *slog.Logger
}

// AuditRecorder is implemented by internal/store.AuditRepository; declared
// here as the narrow slice Dispatcher needs.
type AuditRecorder interface {
	Record(ctx context.Context, action string, entityID uuid.UUID, detail string)
}

// Enqueuer is implemented by internal/retry.IngressQueue; declared here so
// this package depends only on the one method it calls and never imports
// the retry package (which, in turn, receives Deliver as a DeliverFunc
// value instead of importing dispatch).
type Enqueuer interface {
	Enqueue(ctx context.Context, id uuid.UUID, priority domain.Priority) error
}

func New(
	store domain.NotificationRepository,
	clients domain.ApiClientRepository,
	templates domain.TemplateRepository,
	audit AuditRecorder,
	router *channel.Router,
	webhookNotifier *webhook.Notifier,
	ingress Enqueuer,
	broadcast StatusBroadcaster,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:     store,
		clients:   clients,
		templates: templates,
		audit:     audit,
		router:    router,
		webhook:   webhookNotifier,
		ingress:   ingress,
		broadcast: broadcast,
		logger:    logger,
	}
}

// Submit validates req, renders its template if any, persists the new
// notification, and enqueues it for delivery [spec §4.6 steps 1-7].
func (d *Dispatcher) Submit(ctx context.Context, req SendRequest, clientID uuid.UUID) (*SubmitResponse, error) {
	if !req.Channel.IsValid() {
		return nil, domain.NewValidationError("INVALID_CHANNEL", "channel", "must be one of EMAIL, TELEGRAM, SMS, WHATSAPP")
	}
	if req.Recipient == "" {
		return nil, domain.NewValidationError("INVALID_RECIPIENT", "recipient", "is required")
	}
	if req.Channel == domain.ChannelEmail && req.Subject == "" && req.TemplateCode == "" {
		return nil, domain.NewValidationError("MISSING_SUBJECT", "subject", "is required for EMAIL")
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	} else if !priority.IsValid() {
		return nil, domain.NewValidationError("INVALID_PRIORITY", "priority", "must be one of HIGH, NORMAL, LOW")
	}

	subject, body, err := d.renderContent(ctx, req)
	if err != nil {
		return nil, err
	}
	if body == "" {
		return nil, domain.NewValidationError("INVALID_BODY", "message", "is required unless a template renders a non-empty body")
	}

	if req.IdempotencyKey != "" {
		existing, err := d.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			return &SubmitResponse{
				NotificationID: existing.ID,
				Status:         existing.Status,
				CreatedAt:      existing.CreatedAt,
			}, nil
		}
	}

	n := domain.NewNotification(clientID, req.Channel, req.Recipient, subject, body, priority, domain.DefaultTTL)
	n.CallbackURL = req.CallbackURL
	n.Metadata = req.Metadata
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		n.IdempotencyKey = &key
	}

	if err := d.store.Insert(ctx, n); err != nil {
		if errors.Is(err, domain.ErrIdempotencyConflict) {
			existing, findErr := d.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
			if findErr == nil {
				return &SubmitResponse{
					NotificationID: existing.ID,
					Status:         existing.Status,
					CreatedAt:      existing.CreatedAt,
				}, nil
			}
		}
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	d.audit.Record(ctx, "notification.submitted", n.ID, string(n.Channel))
	if err := d.clients.TouchLastUsed(ctx, clientID); err != nil {
		d.logger.Warn("failed to touch client last_used_at", slog.String("error", err.Error()))
	}

	if err := d.ingress.Enqueue(ctx, n.ID, n.Priority); err != nil {
		d.logger.Error("failed to enqueue notification, relying on the scheduler sweep to pick it up",
			slog.String("notification_id", n.ID.String()), slog.String("error", err.Error()))
		// Make the row due now so the scheduler's lease query selects it.
		if err := d.store.ScheduleRetry(ctx, n.ID, n.RetryCount, time.Now(), nil, nil); err != nil {
			d.logger.Error("failed to mark unqueued notification due for the scheduler",
				slog.String("notification_id", n.ID.String()), slog.String("error", err.Error()))
		}
	}

	if d.broadcast != nil {
		d.broadcast(n)
	}

	return &SubmitResponse{NotificationID: n.ID, Status: n.Status, CreatedAt: n.CreatedAt}, nil
}

// renderContent resolves req's message body either from req.Message
// directly or, when TemplateCode is set, by looking up and rendering the
// active template for req.Channel [spec §4.3].
func (d *Dispatcher) renderContent(ctx context.Context, req SendRequest) (subject, body string, err error) {
	if req.TemplateCode == "" {
		return req.Subject, req.Message, nil
	}

	tmpl, err := d.templates.GetActiveByCodeAndChannel(ctx, req.TemplateCode, req.Channel)
	if err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			return "", "", domain.NewValidationError("TEMPLATE_NOT_FOUND", "template_code", "no active template "+req.TemplateCode+" for channel "+string(req.Channel))
		}
		return "", "", fmt.Errorf("failed to load template: %w", err)
	}

	if missing := tmpl.Validate(req.TemplateVariables); len(missing) > 0 {
		return "", "", domain.NewValidationError("INVALID_TEMPLATE_ARGS", "template_variables", "missing required variables: "+fmt.Sprint(missing))
	}

	renderedSubject, renderedBody := tmpl.Render(req.TemplateVariables)
	if req.Subject != "" {
		renderedSubject = req.Subject
	}
	return renderedSubject, renderedBody, nil
}

// Deliver performs a single delivery attempt for n: it resolves the
// primary/fallback pair, sends through the Router, and persists the
// outcome — either terminal (SENT/FAILED) or a scheduled retry
// [spec §4.6 steps 8-11, §4.7].
func (d *Dispatcher) Deliver(ctx context.Context, n *domain.Notification) {
	if n.Status != domain.StatusSending {
		if err := d.store.UpdateStatus(ctx, n.ID, domain.StatusSending, nil, nil); err != nil {
			d.logger.Error("failed to lease notification for delivery",
				slog.String("notification_id", n.ID.String()), slog.String("error", err.Error()))
			return
		}
	}

	result, usedChannel := d.router.SendWithFallback(ctx, n.Channel, n.Recipient, n.Subject, n.Body)

	if result.OK {
		if err := d.store.UpdateStatus(ctx, n.ID, domain.StatusSent, nil, nil); err != nil {
			d.logger.Error("failed to mark notification sent", slog.String("notification_id", n.ID.String()), slog.String("error", err.Error()))
		}
		if result.ProviderMessageID != "" {
			if err := d.store.SetProviderMessageID(ctx, n.ID, result.ProviderMessageID); err != nil {
				d.logger.Warn("failed to record provider message id", slog.String("error", err.Error()))
			}
			n.ProviderMessageID = &result.ProviderMessageID
		}
		n.Status = domain.StatusSent
		d.audit.Record(ctx, "notification.sent", n.ID, string(usedChannel))
		d.webhook.Fire(ctx, n, webhook.EventSent, usedChannel)
		if d.broadcast != nil {
			d.broadcast(n)
		}
		return
	}

	errCode, errMsg := result.ErrorCode, result.ErrorMessage
	nextRetryCount := n.RetryCount + 1

	if result.Retryable && nextRetryCount < n.MaxRetries {
		nextRetryAt := time.Now().Add(domain.Backoff(nextRetryCount))
		if err := d.store.ScheduleRetry(ctx, n.ID, nextRetryCount, nextRetryAt, &errCode, &errMsg); err != nil {
			d.logger.Error("failed to schedule retry", slog.String("notification_id", n.ID.String()), slog.String("error", err.Error()))
		}
		n.Status = domain.StatusPending
		n.RetryCount = nextRetryCount
		d.audit.Record(ctx, "notification.retry_scheduled", n.ID, errCode)
		if d.broadcast != nil {
			d.broadcast(n)
		}
		return
	}

	if err := d.store.UpdateStatus(ctx, n.ID, domain.StatusFailed, &errCode, &errMsg); err != nil {
		d.logger.Error("failed to mark notification failed", slog.String("notification_id", n.ID.String()), slog.String("error", err.Error()))
	}
	n.Status = domain.StatusFailed
	n.ErrorCode, n.ErrorMessage = &errCode, &errMsg
	d.audit.Record(ctx, "notification.failed", n.ID, errCode)
	d.webhook.Fire(ctx, n, webhook.EventFailed, usedChannel)
	if d.broadcast != nil {
		d.broadcast(n)
	}
}

// ForceRetry resets a FAILED/EXPIRED notification back to PENDING and
// re-enqueues it [spec §8 P5, admin operation].
func (d *Dispatcher) ForceRetry(ctx context.Context, id uuid.UUID) error {
	n, err := d.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := d.store.ForceRetry(ctx, id); err != nil {
		return err
	}
	d.audit.Record(ctx, "notification.force_retry", id, "")
	return d.ingress.Enqueue(ctx, id, n.Priority)
}
