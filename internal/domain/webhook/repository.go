package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/catalogd/backend/internal/domain/shared"
)

// Repository persists webhook subscriptions
type Repository interface {
	Create(ctx context.Context, webhook *Webhook) error
	FindByID(ctx context.Context, id uuid.UUID) (*Webhook, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]*Webhook, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	Save(ctx context.Context, webhook *Webhook) error
	Delete(ctx context.Context, id uuid.UUID) error

	// FindActiveByEventType returns the active subscribers for one
	// event type
	FindActiveByEventType(ctx context.Context, eventType EventType) ([]*Webhook, error)
	// SaveTriggerStats writes only the trigger counters and trigger
	// timestamps so stat updates never clobber concurrent edits
	SaveTriggerStats(ctx context.Context, webhook *Webhook) error
}

// LogRepository persists delivery attempt records
type LogRepository interface {
	Create(ctx context.Context, log *Log) error
	FindByWebhookID(ctx context.Context, webhookID uuid.UUID, filter shared.Filter) ([]*Log, error)
	CountByWebhookID(ctx context.Context, webhookID uuid.UUID) (int64, error)
	// DeleteOlderThan removes delivery records created before the
	// cutoff and returns how many were removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
