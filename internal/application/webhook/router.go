package webhookapp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/webhook"
)

// TaskTypeSend is the queue task type for webhook deliveries
const TaskTypeSend = "webhook.send"

// Router fans domain events out to webhook subscribers. It implements
// shared.EventPublisher: each published event becomes one delivery
// task per active subscriber of that event type. Routing failures are
// logged and never propagated to the operation that raised the event.
type Router struct {
	webhooks webhook.Repository
	queue    shared.TaskQueue
	logger   *zap.Logger
}

// NewRouter creates an event router
func NewRouter(webhooks webhook.Repository, queue shared.TaskQueue, logger *zap.Logger) *Router {
	return &Router{
		webhooks: webhooks,
		queue:    queue,
		logger:   logger.Named("webhook_router"),
	}
}

// Publish enqueues one delivery task per active subscriber of each
// event. Events whose type has no webhook mapping are ignored.
func (r *Router) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		r.route(ctx, event)
	}
	return nil
}

func (r *Router) route(ctx context.Context, event shared.DomainEvent) {
	eventType := webhook.EventType(event.EventType())
	if !eventType.IsValid() {
		return
	}

	subscribers, err := r.webhooks.FindActiveByEventType(ctx, eventType)
	if err != nil {
		r.logger.Error("Failed to look up webhook subscribers",
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
		return
	}
	if len(subscribers) == 0 {
		return
	}

	body, err := BuildPayload(event)
	if err != nil {
		r.logger.Error("Failed to build webhook payload",
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
		return
	}

	for _, sub := range subscribers {
		taskID, err := r.queue.Enqueue(ctx, TaskTypeSend, map[string]any{
			"webhook_id": sub.ID.String(),
			"event_type": string(eventType),
			"body":       string(body),
		})
		if err != nil {
			r.logger.Error("Failed to enqueue webhook delivery",
				zap.String("webhook_id", sub.ID.String()),
				zap.String("event_type", string(eventType)),
				zap.Error(err),
			)
			continue
		}
		r.logger.Debug("Webhook delivery enqueued",
			zap.String("webhook_id", sub.ID.String()),
			zap.String("event_type", string(eventType)),
			zap.String("task_id", taskID),
		)
	}
}

// BuildPayload serializes the delivery body for an event. The signature
// is computed over these exact bytes at delivery time.
func BuildPayload(event shared.DomainEvent) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"event":     event.EventType(),
		"event_id":  event.EventID().String(),
		"timestamp": event.OccurredAt().UTC().Format(time.RFC3339),
		"data":      event.Payload(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	return body, nil
}

// Ensure Router implements EventPublisher
var _ shared.EventPublisher = (*Router)(nil)
