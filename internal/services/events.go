package services

import (
	"context"

	"github.com/edupulse/attempt-service/internal/models"
)

// EventPublisher announces attempt lifecycle transitions to interested
// consumers (notifications, gradebook sync). Publishing is fire and
// forget: a broker outage must never fail the request that triggered it.
type EventPublisher interface {
	PublishAttemptStarted(ctx context.Context, attempt *models.ExamAttempt)
	PublishAttemptSubmitted(ctx context.Context, attempt *models.ExamAttempt, summary *AttemptSummary)
	PublishAttemptExpired(ctx context.Context, attempt *models.ExamAttempt, summary *AttemptSummary)
	Close() error
}

// NoopEventPublisher discards every event. Used when no broker is
// configured and in tests.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishAttemptStarted(context.Context, *models.ExamAttempt) {}
func (NoopEventPublisher) PublishAttemptSubmitted(context.Context, *models.ExamAttempt, *AttemptSummary) {
}
func (NoopEventPublisher) PublishAttemptExpired(context.Context, *models.ExamAttempt, *AttemptSummary) {
}
func (NoopEventPublisher) Close() error { return nil }
