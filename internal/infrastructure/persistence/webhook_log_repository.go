package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/webhook"
)

// GormWebhookLogRepository implements webhook.LogRepository using GORM
type GormWebhookLogRepository struct {
	db *gorm.DB
}

// NewGormWebhookLogRepository creates a new GormWebhookLogRepository
func NewGormWebhookLogRepository(db *gorm.DB) *GormWebhookLogRepository {
	return &GormWebhookLogRepository{db: db}
}

// Create inserts a delivery attempt record
func (r *GormWebhookLogRepository) Create(ctx context.Context, log *webhook.Log) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByWebhookID returns delivery records for one webhook, newest first
func (r *GormWebhookLogRepository) FindByWebhookID(ctx context.Context, webhookID uuid.UUID, filter shared.Filter) ([]*webhook.Log, error) {
	query := r.db.WithContext(ctx).
		Where("webhook_id = ?", webhookID).
		Order("created_at DESC")

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var logs []*webhook.Log
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// CountByWebhookID returns the number of delivery records for one webhook
func (r *GormWebhookLogRepository) CountByWebhookID(ctx context.Context, webhookID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&webhook.Log{}).
		Where("webhook_id = ?", webhookID).
		Count(&count).Error
	return count, err
}

// DeleteOlderThan removes delivery records created before the cutoff
func (r *GormWebhookLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&webhook.Log{}, "created_at < ?", cutoff)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Compile-time interface compliance check
var _ webhook.LogRepository = (*GormWebhookLogRepository)(nil)
