package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/catalogd/backend/internal/domain/catalog"
	"github.com/catalogd/backend/internal/domain/shared"
)

// ProductSortFields contains allowed sort fields for products
var ProductSortFields = map[string]bool{
	"id":         true,
	"sku":        true,
	"name":       true,
	"is_active":  true,
	"created_at": true,
	"updated_at": true,
}

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindBySKULower finds a product by its lowercased SKU
func (r *GormProductRepository) FindBySKULower(ctx context.Context, skuLower string) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).First(&product, "sku_lower = ?", skuLower).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindBySKULowerIn returns existing products keyed by lowercased SKU
func (r *GormProductRepository) FindBySKULowerIn(ctx context.Context, skuLowers []string) (map[string]*catalog.Product, error) {
	result := make(map[string]*catalog.Product, len(skuLowers))
	if len(skuLowers) == 0 {
		return result, nil
	}
	var products []*catalog.Product
	if err := r.db.WithContext(ctx).
		Where("sku_lower IN ?", skuLowers).
		Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		result[p.SKULower] = p
	}
	return result, nil
}

// FindAll returns products with pagination, search and filtering
func (r *GormProductRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*catalog.Product, error) {
	query := r.applyFilters(r.db.WithContext(ctx).Model(&catalog.Product{}), filter)

	orderBy := "created_at"
	if filter.OrderBy != "" && ProductSortFields[filter.OrderBy] {
		orderBy = filter.OrderBy
	}
	dir := "DESC"
	if filter.OrderDir == "asc" {
		dir = "ASC"
	}
	query = query.Order(orderBy + " " + dir)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var products []*catalog.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Count returns the number of products matching the filter
func (r *GormProductRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilters(r.db.WithContext(ctx).Model(&catalog.Product{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a new product
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	err := r.db.WithContext(ctx).Create(product).Error
	if err != nil && isUniqueViolation(err) {
		return shared.ErrAlreadyExists
	}
	return err
}

// Save updates an existing product
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// BulkCreate inserts products in one statement. With ignoreConflicts,
// rows whose sku_lower already exists are skipped and the returned
// count reflects only the rows actually inserted.
func (r *GormProductRepository) BulkCreate(ctx context.Context, products []*catalog.Product, ignoreConflicts bool) (int64, error) {
	if len(products) == 0 {
		return 0, nil
	}
	tx := r.db.WithContext(ctx)
	if ignoreConflicts {
		tx = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku_lower"}},
			DoNothing: true,
		})
	}
	result := tx.Create(&products)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// BulkUpdate saves each product in turn. Callers wrap this in Transact
// when atomicity across the batch matters.
func (r *GormProductRepository) BulkUpdate(ctx context.Context, products []*catalog.Product) error {
	for _, p := range products {
		if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a product by ID
func (r *GormProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&catalog.Product{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteByIDs removes products by ID and returns how many existed
func (r *GormProductRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Delete(&catalog.Product{}, "id IN ?", ids)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountActive returns the number of active products
func (r *GormProductRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&catalog.Product{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}

// CountInactive returns the number of inactive products
func (r *GormProductRepository) CountInactive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&catalog.Product{}).Where("is_active = ?", false).Count(&count).Error
	return count, err
}

// Transact runs fn with a repository bound to one transaction
func (r *GormProductRepository) Transact(ctx context.Context, fn func(repo catalog.ProductRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormProductRepository{db: tx})
	})
}

func (r *GormProductRepository) applyFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("sku ILIKE ? OR name ILIKE ?", pattern, pattern)
	}
	if active, ok := filter.Filters["is_active"]; ok {
		query = query.Where("is_active = ?", active)
	}
	return query
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Compile-time interface compliance check
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
