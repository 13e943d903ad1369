package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/webhook"
)

// GormWebhookRepository implements webhook.Repository using GORM
type GormWebhookRepository struct {
	db *gorm.DB
}

// NewGormWebhookRepository creates a new GormWebhookRepository
func NewGormWebhookRepository(db *gorm.DB) *GormWebhookRepository {
	return &GormWebhookRepository{db: db}
}

// Create inserts a new webhook
func (r *GormWebhookRepository) Create(ctx context.Context, wh *webhook.Webhook) error {
	return r.db.WithContext(ctx).Create(wh).Error
}

// FindByID finds a webhook by ID
func (r *GormWebhookRepository) FindByID(ctx context.Context, id uuid.UUID) (*webhook.Webhook, error) {
	var wh webhook.Webhook
	if err := r.db.WithContext(ctx).First(&wh, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &wh, nil
}

// FindAll returns webhooks with pagination and filtering
func (r *GormWebhookRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*webhook.Webhook, error) {
	query := r.applyFilters(r.db.WithContext(ctx).Model(&webhook.Webhook{}), filter).
		Order("created_at DESC")

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var webhooks []*webhook.Webhook
	if err := query.Find(&webhooks).Error; err != nil {
		return nil, err
	}
	return webhooks, nil
}

// Count returns the number of webhooks matching the filter
func (r *GormWebhookRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilters(r.db.WithContext(ctx).Model(&webhook.Webhook{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save updates an existing webhook
func (r *GormWebhookRepository) Save(ctx context.Context, wh *webhook.Webhook) error {
	return r.db.WithContext(ctx).Save(wh).Error
}

// Delete removes a webhook by ID
func (r *GormWebhookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&webhook.Webhook{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindActiveByEventType returns active subscribers for one event type
func (r *GormWebhookRepository) FindActiveByEventType(ctx context.Context, eventType webhook.EventType) ([]*webhook.Webhook, error) {
	var webhooks []*webhook.Webhook
	err := r.db.WithContext(ctx).
		Where("event_type = ? AND is_active = ?", eventType, true).
		Order("created_at ASC").
		Find(&webhooks).Error
	if err != nil {
		return nil, err
	}
	return webhooks, nil
}

// SaveTriggerStats writes only the trigger counters and timestamps
func (r *GormWebhookRepository) SaveTriggerStats(ctx context.Context, wh *webhook.Webhook) error {
	return r.db.WithContext(ctx).Model(&webhook.Webhook{}).
		Where("id = ?", wh.ID).
		Updates(map[string]any{
			"total_triggers":      wh.TotalTriggers,
			"successful_triggers": wh.SuccessfulTriggers,
			"failed_triggers":     wh.FailedTriggers,
			"last_triggered_at":   wh.LastTriggeredAt,
			"last_success_at":     wh.LastSuccessAt,
			"last_failure_at":     wh.LastFailureAt,
			"updated_at":          wh.UpdatedAt,
		}).Error
}

func (r *GormWebhookRepository) applyFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if eventType, ok := filter.Filters["event_type"]; ok {
		query = query.Where("event_type = ?", eventType)
	}
	if active, ok := filter.Filters["is_active"]; ok {
		query = query.Where("is_active = ?", active)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR url ILIKE ?", pattern, pattern)
	}
	return query
}

// Compile-time interface compliance check
var _ webhook.Repository = (*GormWebhookRepository)(nil)
