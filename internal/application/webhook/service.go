package webhookapp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/webhook"
)

// Service manages webhook subscriptions
type Service struct {
	webhooks   webhook.Repository
	logs       webhook.LogRepository
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewService creates a webhook management service
func NewService(webhooks webhook.Repository, logs webhook.LogRepository, dispatcher *Dispatcher, logger *zap.Logger) *Service {
	return &Service{
		webhooks:   webhooks,
		logs:       logs,
		dispatcher: dispatcher,
		logger:     logger.Named("webhook_service"),
	}
}

// Create registers a new webhook subscription. The generated secret is
// returned once on the created webhook; clients must store it.
func (s *Service) Create(ctx context.Context, name, url string, eventType webhook.EventType, description string) (*webhook.Webhook, error) {
	wh, err := webhook.NewWebhook(name, url, eventType, description)
	if err != nil {
		return nil, err
	}
	if err := s.webhooks.Create(ctx, wh); err != nil {
		return nil, err
	}
	s.logger.Info("Webhook created",
		zap.String("webhook_id", wh.ID.String()),
		zap.String("event_type", string(eventType)),
	)
	return wh, nil
}

// Get returns one webhook by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*webhook.Webhook, error) {
	return s.webhooks.FindByID(ctx, id)
}

// List returns webhooks matching the filter together with the total count
func (s *Service) List(ctx context.Context, filter shared.Filter) ([]*webhook.Webhook, int64, error) {
	webhooks, err := s.webhooks.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.webhooks.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return webhooks, total, nil
}

// Update changes a webhook's mutable fields
func (s *Service) Update(ctx context.Context, id uuid.UUID, name, url string, eventType webhook.EventType, description string, isActive bool) (*webhook.Webhook, error) {
	wh, err := s.webhooks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := wh.Update(name, url, eventType, description, isActive); err != nil {
		return nil, err
	}
	if err := s.webhooks.Save(ctx, wh); err != nil {
		return nil, err
	}
	return wh, nil
}

// RotateSecret replaces the signing secret and returns the webhook with
// the new secret
func (s *Service) RotateSecret(ctx context.Context, id uuid.UUID) (*webhook.Webhook, error) {
	wh, err := s.webhooks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := wh.RotateSecret(); err != nil {
		return nil, err
	}
	if err := s.webhooks.Save(ctx, wh); err != nil {
		return nil, err
	}
	s.logger.Info("Webhook secret rotated", zap.String("webhook_id", id.String()))
	return wh, nil
}

// Delete removes a webhook and, via the schema, its delivery logs
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.webhooks.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Webhook deleted", zap.String("webhook_id", id.String()))
	return nil
}

// Test sends a sample payload to the endpoint and returns the attempt
// log so the caller sees status code and response
func (s *Service) Test(ctx context.Context, id uuid.UUID) (*webhook.Log, error) {
	wh, err := s.webhooks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"event":     "webhook.test",
		"event_id":  uuid.New().String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data": map[string]any{
			"webhook_id": wh.ID.String(),
			"message":    "Test delivery",
		},
	})
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Test(ctx, wh, body)
}

// Logs returns delivery history for one webhook
func (s *Service) Logs(ctx context.Context, id uuid.UUID, filter shared.Filter) ([]*webhook.Log, int64, error) {
	if _, err := s.webhooks.FindByID(ctx, id); err != nil {
		return nil, 0, err
	}
	logs, err := s.logs.FindByWebhookID(ctx, id, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.logs.CountByWebhookID(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
