package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/catalogd/backend/internal/domain/catalog"
	"github.com/catalogd/backend/internal/domain/shared"
)

// GormAuditLogRepository implements catalog.AuditLogRepository using GORM
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Create inserts an audit entry
func (r *GormAuditLogRepository) Create(ctx context.Context, entry *catalog.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindBySKU returns audit entries for a SKU, newest first
func (r *GormAuditLogRepository) FindBySKU(ctx context.Context, sku string, filter shared.Filter) ([]*catalog.AuditLog, error) {
	query := r.db.WithContext(ctx).
		Where("product_sku = ?", sku).
		Order("timestamp DESC")

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var entries []*catalog.AuditLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Compile-time interface compliance check
var _ catalog.AuditLogRepository = (*GormAuditLogRepository)(nil)
