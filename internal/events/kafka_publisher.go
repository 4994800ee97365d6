package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/edupulse/attempt-service/internal/models"
	"github.com/edupulse/attempt-service/internal/services"
)

const (
	EventAttemptStarted   = "attempt.started"
	EventAttemptSubmitted = "attempt.submitted"
	EventAttemptExpired   = "attempt.expired"
)

// AttemptEvent is the wire payload for every lifecycle event.
type AttemptEvent struct {
	Type            string    `json:"type"`
	AttemptID       uint      `json:"attempt_id"`
	ExamID          uint      `json:"exam_id"`
	StudentID       string    `json:"student_id"`
	AttemptNumber   int       `json:"attempt_number"`
	EndReason       string    `json:"end_reason,omitempty"`
	ScorePercentage *float64  `json:"score_percentage,omitempty"`
	Passed          *bool     `json:"passed,omitempty"`
	Grade           *string   `json:"grade,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// KafkaPublisher emits attempt lifecycle events to a single Kafka topic,
// with the event type in message metadata for consumer-side routing.
type KafkaPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &KafkaPublisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}, nil
}

func (p *KafkaPublisher) PublishAttemptStarted(ctx context.Context, attempt *models.ExamAttempt) {
	p.publish(ctx, AttemptEvent{
		Type:          EventAttemptStarted,
		AttemptID:     attempt.ID,
		ExamID:        attempt.ExamID,
		StudentID:     attempt.StudentID,
		AttemptNumber: attempt.AttemptNumber,
		OccurredAt:    time.Now().UTC(),
	})
}

func (p *KafkaPublisher) PublishAttemptSubmitted(ctx context.Context, attempt *models.ExamAttempt, summary *services.AttemptSummary) {
	p.publish(ctx, p.completionEvent(EventAttemptSubmitted, attempt, summary))
}

func (p *KafkaPublisher) PublishAttemptExpired(ctx context.Context, attempt *models.ExamAttempt, summary *services.AttemptSummary) {
	p.publish(ctx, p.completionEvent(EventAttemptExpired, attempt, summary))
}

func (p *KafkaPublisher) Close() error {
	return p.publisher.Close()
}

func (p *KafkaPublisher) completionEvent(eventType string, attempt *models.ExamAttempt, summary *services.AttemptSummary) AttemptEvent {
	event := AttemptEvent{
		Type:          eventType,
		AttemptID:     attempt.ID,
		ExamID:        attempt.ExamID,
		StudentID:     attempt.StudentID,
		AttemptNumber: attempt.AttemptNumber,
		OccurredAt:    time.Now().UTC(),
	}
	if attempt.EndReason != nil {
		event.EndReason = string(*attempt.EndReason)
	}
	if summary != nil {
		event.ScorePercentage = &summary.ScorePercentage
		event.Passed = &summary.IsPassed
		event.Grade = &summary.Grade
	}
	return event
}

func (p *KafkaPublisher) publish(ctx context.Context, event AttemptEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.Type)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.logger.Error("failed to publish event",
			"type", event.Type,
			"attempt_id", event.AttemptID,
			"error", err)
	}
}
