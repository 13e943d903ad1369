package webhookapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/webhook"
)

// TaskHandler executes queued webhook deliveries
type TaskHandler struct {
	dispatcher *Dispatcher
	webhooks   webhook.Repository
	logger     *zap.Logger
}

// NewTaskHandler creates the webhook task handler
func NewTaskHandler(dispatcher *Dispatcher, webhooks webhook.Repository, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		dispatcher: dispatcher,
		webhooks:   webhooks,
		logger:     logger.Named("webhook_task"),
	}
}

// Register installs the handler on the task queue
func (h *TaskHandler) Register(queue shared.TaskQueue) {
	queue.Register(TaskTypeSend, h.HandleSend)
}

// HandleSend delivers one event to one subscriber. The dispatcher owns
// the retry loop and the failure bookkeeping, so an exhausted delivery
// is not a task error.
func (h *TaskHandler) HandleSend(ctx context.Context, taskID string, payload map[string]any) error {
	webhookID, _ := payload["webhook_id"].(string)
	eventType, _ := payload["event_type"].(string)
	body, _ := payload["body"].(string)
	if webhookID == "" || eventType == "" || body == "" {
		return fmt.Errorf("task payload missing webhook_id, event_type or body")
	}

	id, err := uuid.Parse(webhookID)
	if err != nil {
		return fmt.Errorf("invalid webhook_id %q: %w", webhookID, err)
	}

	wh, err := h.webhooks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Subscriber deleted between enqueue and delivery
			h.logger.Warn("Dropping delivery for deleted webhook", zap.String("webhook_id", webhookID))
			return nil
		}
		return fmt.Errorf("failed to load webhook %s: %w", webhookID, err)
	}
	if !wh.IsActive {
		h.logger.Debug("Dropping delivery for deactivated webhook", zap.String("webhook_id", webhookID))
		return nil
	}

	err = h.dispatcher.Deliver(ctx, wh, webhook.EventType(eventType), []byte(body))
	if err != nil && !errors.Is(err, ErrDeliveryFailed) {
		return err
	}
	return nil
}
