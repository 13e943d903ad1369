package catalog

import (
	"context"

	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductRepository defines persistence operations for products.
// Bulk operations exist to serve the chunked CSV import path; BulkCreate
// reports the number of rows actually inserted so callers never have to
// infer it from table cardinality.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindBySKULower(ctx context.Context, skuLower string) (*Product, error)
	// FindBySKULowerIn bulk-fetches products whose canonical SKU matches
	// any of the given keys, returned as a map keyed by SKULower.
	FindBySKULowerIn(ctx context.Context, skuLowers []string) (map[string]*Product, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]*Product, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	Create(ctx context.Context, product *Product) error
	Save(ctx context.Context, product *Product) error
	// BulkCreate inserts products in one statement. When ignoreConflicts
	// is true, rows colliding on sku_lower are silently dropped. Returns
	// the number of rows actually inserted.
	BulkCreate(ctx context.Context, products []*Product, ignoreConflicts bool) (int64, error)
	// BulkUpdate persists sku, sku_lower, name and description for
	// existing products.
	BulkUpdate(ctx context.Context, products []*Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByIDs deletes the subset of ids that exist and returns the
	// deleted count.
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)

	CountActive(ctx context.Context) (int64, error)
	CountInactive(ctx context.Context) (int64, error)

	// Transact runs fn against a repository bound to one transaction.
	Transact(ctx context.Context, fn func(repo ProductRepository) error) error
}

// AuditLogRepository persists the append-only product audit trail
type AuditLogRepository interface {
	Create(ctx context.Context, entry *AuditLog) error
	FindBySKU(ctx context.Context, sku string, filter shared.Filter) ([]*AuditLog, error)
}
