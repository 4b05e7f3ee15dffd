package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insider-one/notify-dispatch/internal/channel"
	"github.com/insider-one/notify-dispatch/internal/domain"
	"github.com/insider-one/notify-dispatch/internal/webhook"
)

// fakeStore is an in-memory domain.NotificationRepository for dispatch tests.
type fakeStore struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]*domain.Notification
	byIdemKey   map[string]uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byID:      make(map[uuid.UUID]*domain.Notification),
		byIdemKey: make(map[string]uuid.UUID),
	}
}

func (s *fakeStore) Insert(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.IdempotencyKey != nil {
		if _, exists := s.byIdemKey[*n.IdempotencyKey]; exists {
			return domain.ErrIdempotencyConflict
		}
		s.byIdemKey[*n.IdempotencyKey] = n.ID
	}
	s.byID[n.ID] = n
	return nil
}

func (s *fakeStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return n, nil
}

func (s *fakeStore) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byIdemKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, errorCode, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.byID[id]
	n.Status = status
	n.ErrorCode = errorCode
	n.ErrorMessage = errorMessage
	if status == domain.StatusSent {
		now := time.Now()
		n.SentAt = &now
	}
	return nil
}

func (s *fakeStore) SetProviderMessageID(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id].ProviderMessageID = &providerMessageID
	return nil
}

func (s *fakeStore) ScheduleRetry(ctx context.Context, id uuid.UUID, newRetryCount int, nextRetryAt time.Time, errorCode, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.byID[id]
	n.Status = domain.StatusPending
	n.RetryCount = newRetryCount
	n.NextRetryAt = &nextRetryAt
	n.ErrorCode = errorCode
	n.ErrorMessage = errorMessage
	return nil
}

func (s *fakeStore) LeaseDueRetries(ctx context.Context, now time.Time, limit int) ([]*domain.Notification, error) {
	return nil, nil
}
func (s *fakeStore) ExpireOverdue(ctx context.Context, now time.Time) ([]*domain.Notification, error) {
	return nil, nil
}
func (s *fakeStore) ReleaseStaleLeases(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}
func (s *fakeStore) ForceRetry(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id].Status = domain.StatusPending
	return nil
}
func (s *fakeStore) List(ctx context.Context, filter domain.NotificationFilter) (*domain.NotificationListResult, error) {
	return &domain.NotificationListResult{}, nil
}
func (s *fakeStore) Count(ctx context.Context, filter domain.NotificationFilter) (int64, error) {
	return 0, nil
}

type fakeClients struct{}

func (fakeClients) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.ApiClient, error) {
	return &domain.ApiClient{ID: uuid.New(), Active: true}, nil
}
func (fakeClients) TouchLastUsed(ctx context.Context, id uuid.UUID) error { return nil }

type fakeTemplates struct{}

func (fakeTemplates) GetActiveByCodeAndChannel(ctx context.Context, code string, ch domain.Channel) (*domain.MessageTemplate, error) {
	return nil, domain.ErrTemplateNotFound
}

type fakeAudit struct{}

func (fakeAudit) Record(ctx context.Context, action string, entityID uuid.UUID, detail string) {}

type fakeAdapter struct {
	channel domain.Channel
	result  channel.SendResult
}

func (a *fakeAdapter) Send(ctx context.Context, recipient, subject, body string) channel.SendResult {
	return a.result
}
func (a *fakeAdapter) HealthCheck(ctx context.Context) bool { return true }
func (a *fakeAdapter) Name() domain.Channel                 { return a.channel }
func (a *fakeAdapter) IsEnabled() bool                      { return true }
func (a *fakeAdapter) IsConfigured() bool                   { return true }

type fakeIngress struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
}

func (f *fakeIngress) Enqueue(ctx context.Context, id uuid.UUID, priority domain.Priority) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(t *testing.T, st *fakeStore, sendResult channel.SendResult) *Dispatcher {
	t.Helper()
	router := channel.NewRouter(nil, testLogger())
	router.Register(&fakeAdapter{channel: domain.ChannelEmail, result: sendResult})
	router.Register(&fakeAdapter{channel: domain.ChannelSMS, result: channel.SendResult{OK: false, ErrorCode: "API_ERROR", ErrorMessage: "gateway down", Retryable: true}})

	webhookNotifier := webhook.New("secret", time.Second, testLogger())

	return New(
		st,
		fakeClients{},
		fakeTemplates{},
		fakeAudit{},
		router,
		webhookNotifier,
		&fakeIngress{},
		nil,
		testLogger(),
	)
}

func TestDispatcher_Submit_RejectsInvalidChannel(t *testing.T) {
	st := newFakeStore()
	d := newTestDispatcher(t, st, channel.SendResult{OK: true})

	_, err := d.Submit(context.Background(), SendRequest{
		Channel:   "CARRIER_PIGEON",
		Recipient: "a@b.com",
		Message:   "hi",
	}, uuid.New())

	require.Error(t, err)
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "INVALID_CHANNEL", verr.Code)
}

func TestDispatcher_Submit_RequiresSubjectForEmail(t *testing.T) {
	st := newFakeStore()
	d := newTestDispatcher(t, st, channel.SendResult{OK: true})

	_, err := d.Submit(context.Background(), SendRequest{
		Channel:   domain.ChannelEmail,
		Recipient: "a@b.com",
		Message:   "hi",
	}, uuid.New())

	require.Error(t, err)
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "MISSING_SUBJECT", verr.Code)
}

func TestDispatcher_Submit_IdempotentReplayReturnsSameID(t *testing.T) {
	st := newFakeStore()
	d := newTestDispatcher(t, st, channel.SendResult{OK: true})

	req := SendRequest{
		Channel:        domain.ChannelSMS,
		Recipient:      "+15555550100",
		Message:        "hi",
		IdempotencyKey: "dup-key",
	}
	clientID := uuid.New()

	first, err := d.Submit(context.Background(), req, clientID)
	require.NoError(t, err)

	second, err := d.Submit(context.Background(), req, clientID)
	require.NoError(t, err)

	assert.Equal(t, first.NotificationID, second.NotificationID)
}

func TestDispatcher_Deliver_SchedulesRetryOnRetryableFailure(t *testing.T) {
	st := newFakeStore()
	d := newTestDispatcher(t, st, channel.SendResult{OK: false, ErrorCode: "SMTP_ERROR", ErrorMessage: "timeout", Retryable: true})

	n := domain.NewNotification(uuid.New(), domain.ChannelEmail, "a@b.com", "subj", "body", domain.PriorityNormal, domain.DefaultTTL)
	require.NoError(t, st.Insert(context.Background(), n))

	d.Deliver(context.Background(), n)

	stored, err := st.FindByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.NextRetryAt)
}

func TestDispatcher_Deliver_FailsTerminallyWhenRetriesExhausted(t *testing.T) {
	st := newFakeStore()
	d := newTestDispatcher(t, st, channel.SendResult{OK: false, ErrorCode: "SMTP_ERROR", ErrorMessage: "timeout", Retryable: true})

	n := domain.NewNotification(uuid.New(), domain.ChannelEmail, "a@b.com", "subj", "body", domain.PriorityNormal, domain.DefaultTTL)
	n.RetryCount = n.MaxRetries - 1
	require.NoError(t, st.Insert(context.Background(), n))

	d.Deliver(context.Background(), n)

	stored, err := st.FindByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
}
