// Package channel implements the Channel Adapter contract [spec §4.4] and
// the Channel Router [spec §4.5] that sits in front of it.
package channel

import (
	"context"

	"github.com/insider-one/notify-dispatch/internal/domain"
)

// SendResult is what every Adapter.Send call returns — either a successful
// provider message id, or a classified failure.
type SendResult struct {
	OK                bool
	ProviderMessageID string
	ErrorCode         string
	ErrorMessage      string
	Retryable         bool
}

// Adapter is the uniform contract every channel provider implements
// [spec §4.4].
type Adapter interface {
	Send(ctx context.Context, recipient, subject, body string) SendResult
	HealthCheck(ctx context.Context) bool
	Name() domain.Channel
	IsEnabled() bool
	IsConfigured() bool
}

func fail(code, message string, retryable bool) SendResult {
	return SendResult{OK: false, ErrorCode: code, ErrorMessage: message, Retryable: retryable}
}

func ok(providerMessageID string) SendResult {
	return SendResult{OK: true, ProviderMessageID: providerMessageID}
}
