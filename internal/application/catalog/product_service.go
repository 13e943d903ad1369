package catalogapp

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/catalog"
	"github.com/catalogd/backend/internal/domain/shared"
)

// StatsTTL is how long the cached stats view stays fresh
const StatsTTL = 5 * time.Minute

// StatsCache caches the catalog statistics view
type StatsCache interface {
	Set(ctx context.Context, stats catalog.Stats, ttl time.Duration) error
	Get(ctx context.Context) (catalog.Stats, error)
	Invalidate(ctx context.Context) error
}

// ProductService handles catalog product operations. Every write is
// audited and published to the event router.
type ProductService struct {
	products catalog.ProductRepository
	audits   catalog.AuditLogRepository
	events   shared.EventPublisher
	stats    StatsCache
	logger   *zap.Logger
}

// NewProductService creates a product service
func NewProductService(
	products catalog.ProductRepository,
	audits catalog.AuditLogRepository,
	events shared.EventPublisher,
	stats StatsCache,
	logger *zap.Logger,
) *ProductService {
	return &ProductService{
		products: products,
		audits:   audits,
		events:   events,
		stats:    stats,
		logger:   logger.Named("product_service"),
	}
}

// Create adds a new product to the catalog
func (s *ProductService) Create(ctx context.Context, sku, name, description, user string) (*catalog.Product, error) {
	product, err := catalog.NewProduct(sku, name, description)
	if err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	s.audit(ctx, product.SKU, catalog.AuditActionCreate, map[string]any{
		"sku":  product.SKU,
		"name": product.Name,
	}, user)
	s.publishEvents(ctx, product)
	s.invalidateStats(ctx)

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
	)
	return product, nil
}

// Get returns one product by id
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return s.products.FindByID(ctx, id)
}

// GetBySKU returns one product by SKU, matched case-insensitively
func (s *ProductService) GetBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	return s.products.FindBySKULower(ctx, catalog.NormalizeSKU(sku))
}

// List returns products matching the filter together with the total count
func (s *ProductService) List(ctx context.Context, filter shared.Filter) ([]*catalog.Product, int64, error) {
	products, err := s.products.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.products.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Update changes a product's name, description and active state
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, name, description string, isActive bool, user string) (*catalog.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if product.Name != name {
		changes["name"] = map[string]any{"from": product.Name, "to": name}
	}
	if product.Description != description {
		changes["description_changed"] = true
	}
	if product.IsActive != isActive {
		changes["is_active"] = map[string]any{"from": product.IsActive, "to": isActive}
	}

	if err := product.Update(name, description); err != nil {
		return nil, err
	}
	if isActive {
		product.Activate()
	} else {
		product.Deactivate()
	}

	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}

	s.audit(ctx, product.SKU, catalog.AuditActionUpdate, changes, user)
	s.publishEvents(ctx, product)
	s.invalidateStats(ctx)
	return product, nil
}

// Delete removes one product
func (s *ProductService) Delete(ctx context.Context, id uuid.UUID, user string) error {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	s.audit(ctx, product.SKU, catalog.AuditActionDelete, map[string]any{
		"sku":  product.SKU,
		"name": product.Name,
	}, user)
	s.publish(ctx, catalog.NewProductDeletedEvent(product))
	s.invalidateStats(ctx)

	s.logger.Info("Product deleted",
		zap.String("product_id", id.String()),
		zap.String("sku", product.SKU),
	)
	return nil
}

// BulkDelete removes the given products and returns how many existed.
// Missing ids are not an error; the count reflects actual deletions.
func (s *ProductService) BulkDelete(ctx context.Context, ids []uuid.UUID, user string) (int64, error) {
	deleted, err := s.products.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, nil
	}

	s.audit(ctx, "", catalog.AuditActionBulkDelete, map[string]any{
		"deleted_count": deleted,
		"requested":     len(ids),
	}, user)
	s.publish(ctx, catalog.NewProductBulkDeletedEvent(ids, deleted))
	s.invalidateStats(ctx)

	s.logger.Info("Products bulk deleted",
		zap.Int64("deleted", deleted),
		zap.Int("requested", len(ids)),
	)
	return deleted, nil
}

// Stats returns the catalog statistics view, served from cache when
// fresh
func (s *ProductService) Stats(ctx context.Context) (catalog.Stats, error) {
	if stats, err := s.stats.Get(ctx); err == nil {
		return stats, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		s.logger.Warn("Stats cache read failed", zap.Error(err))
	}

	total, err := s.products.Count(ctx, shared.NewFilter())
	if err != nil {
		return catalog.Stats{}, err
	}
	active, err := s.products.CountActive(ctx)
	if err != nil {
		return catalog.Stats{}, err
	}
	inactive, err := s.products.CountInactive(ctx)
	if err != nil {
		return catalog.Stats{}, err
	}

	stats := catalog.Stats{
		TotalProducts:    total,
		ActiveProducts:   active,
		InactiveProducts: inactive,
	}
	if err := s.stats.Set(ctx, stats, StatsTTL); err != nil {
		s.logger.Warn("Stats cache write failed", zap.Error(err))
	}
	return stats, nil
}

// ExportCSV streams the full catalog as CSV to w, page by page
func (s *ProductService) ExportCSV(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"sku", "name", "description", "status"}); err != nil {
		return err
	}

	const pageSize = 1000
	filter := shared.NewFilter()
	filter.PageSize = pageSize
	filter.OrderBy = "sku"
	filter.OrderDir = "asc"

	for page := 1; ; page++ {
		filter.Page = page
		products, err := s.products.FindAll(ctx, filter)
		if err != nil {
			return err
		}
		for _, p := range products {
			if err := cw.Write([]string{p.SKU, p.Name, p.Description, p.Status()}); err != nil {
				return err
			}
		}
		if len(products) < pageSize {
			break
		}
	}

	cw.Flush()
	return cw.Error()
}

// AuditTrail returns the audit entries for one SKU
func (s *ProductService) AuditTrail(ctx context.Context, sku string, filter shared.Filter) ([]*catalog.AuditLog, error) {
	return s.audits.FindBySKU(ctx, sku, filter)
}

func (s *ProductService) audit(ctx context.Context, sku string, action catalog.AuditAction, changes map[string]any, user string) {
	entry, err := catalog.NewAuditLog(sku, action, changes, user)
	if err != nil {
		s.logger.Error("Failed to build audit entry", zap.String("sku", sku), zap.Error(err))
		return
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to persist audit entry", zap.String("sku", sku), zap.Error(err))
	}
}

// publishEvents drains and publishes the aggregate's buffered events
func (s *ProductService) publishEvents(ctx context.Context, product *catalog.Product) {
	events := product.GetDomainEvents()
	product.ClearDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish product events", zap.Error(err))
	}
}

func (s *ProductService) publish(ctx context.Context, event shared.DomainEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", zap.String("event_type", event.EventType()), zap.Error(err))
	}
}

func (s *ProductService) invalidateStats(ctx context.Context) {
	if err := s.stats.Invalidate(ctx); err != nil {
		s.logger.Warn("Failed to invalidate stats cache", zap.Error(err))
	}
}
