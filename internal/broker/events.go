package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"demand-forecast-service/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing training lifecycle events. Downstream
// alerting and reporting consume these to react to new artifacts.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// PublishTrainingStarted publishes TrainingStarted event
func (ep *EventPublisher) PublishTrainingStarted(ctx context.Context, runID, modelType, period string) error {
	event := &models.TrainingStartedEvent{
		BaseEvent: newBaseEvent(models.EventTypeTrainingStarted),
		RunID:     runID,
		ModelType: modelType,
		Period:    period,
	}
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("training-%s", runID), event)
}

// PublishTrainingCompleted publishes TrainingCompleted event
func (ep *EventPublisher) PublishTrainingCompleted(ctx context.Context, runID, modelType, period, artifactPath string, metrics map[string]models.ModelMetrics) error {
	event := &models.TrainingCompletedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeTrainingCompleted),
		RunID:        runID,
		ModelType:    modelType,
		Period:       period,
		Metrics:      metrics,
		ArtifactPath: artifactPath,
	}
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("training-%s", runID), event)
}

// PublishTrainingFailed publishes TrainingFailed event
func (ep *EventPublisher) PublishTrainingFailed(ctx context.Context, runID, modelType, period, reason string) error {
	event := &models.TrainingFailedEvent{
		BaseEvent: newBaseEvent(models.EventTypeTrainingFailed),
		RunID:     runID,
		ModelType: modelType,
		Period:    period,
		Reason:    reason,
	}
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("training-%s", runID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onRetrainRequested func(context.Context, *models.RetrainRequestedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnRetrainRequested registers a handler for RetrainRequested events
func (eh *EventHandler) OnRetrainRequested(handler func(context.Context, *models.RetrainRequestedEvent) error) {
	eh.onRetrainRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeRetrainRequested:
		if eh.onRetrainRequested != nil {
			var event models.RetrainRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RetrainRequested event: %w", err)
			}
			return eh.onRetrainRequested(ctx, &event)
		}

	default:
		// Lifecycle events we published ourselves come back on the same
		// topic; nothing to do for them.
	}

	return nil
}
