package catalog

import (
	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeProduct = "Product"

// Event type constants. These are the wire names webhooks subscribe to.
const (
	EventTypeProductCreated     = "product.created"
	EventTypeProductUpdated     = "product.updated"
	EventTypeProductDeleted     = "product.deleted"
	EventTypeProductBulkDeleted = "product.bulk_deleted"
)

// ProductCreatedEvent is published when a new product is created
type ProductCreatedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
}

// NewProductCreatedEvent creates a new ProductCreatedEvent
func NewProductCreatedEvent(product *Product) *ProductCreatedEvent {
	return &ProductCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductCreated, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		SKU:             product.SKU,
		Name:            product.Name,
	}
}

// Payload returns the event body delivered to subscribers
func (e *ProductCreatedEvent) Payload() map[string]any {
	return map[string]any{
		"product_id": e.ProductID.String(),
		"sku":        e.SKU,
		"name":       e.Name,
	}
}

// ProductUpdatedEvent is published when a product is updated
type ProductUpdatedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
}

// NewProductUpdatedEvent creates a new ProductUpdatedEvent
func NewProductUpdatedEvent(product *Product) *ProductUpdatedEvent {
	return &ProductUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductUpdated, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		SKU:             product.SKU,
		Name:            product.Name,
	}
}

// Payload returns the event body delivered to subscribers
func (e *ProductUpdatedEvent) Payload() map[string]any {
	return map[string]any{
		"product_id": e.ProductID.String(),
		"sku":        e.SKU,
		"name":       e.Name,
	}
}

// ProductDeletedEvent is published when a product is deleted
type ProductDeletedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
}

// NewProductDeletedEvent creates a new ProductDeletedEvent
func NewProductDeletedEvent(product *Product) *ProductDeletedEvent {
	return &ProductDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductDeleted, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		SKU:             product.SKU,
	}
}

// Payload returns the event body delivered to subscribers
func (e *ProductDeletedEvent) Payload() map[string]any {
	return map[string]any{
		"product_id": e.ProductID.String(),
		"sku":        e.SKU,
	}
}

// ProductBulkDeletedEvent is published once per bulk delete operation
type ProductBulkDeletedEvent struct {
	shared.BaseDomainEvent
	ProductIDs   []uuid.UUID `json:"product_ids"`
	DeletedCount int64       `json:"deleted_count"`
}

// NewProductBulkDeletedEvent creates a new ProductBulkDeletedEvent
func NewProductBulkDeletedEvent(ids []uuid.UUID, deletedCount int64) *ProductBulkDeletedEvent {
	return &ProductBulkDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductBulkDeleted, AggregateTypeProduct, uuid.Nil),
		ProductIDs:      ids,
		DeletedCount:    deletedCount,
	}
}

// Payload returns the event payload
func (e *ProductBulkDeletedEvent) Payload() map[string]any {
	idStrs := make([]string, len(e.ProductIDs))
	for i, id := range e.ProductIDs {
		idStrs[i] = id.String()
	}
	return map[string]any{
		"product_ids":   idStrs,
		"deleted_count": e.DeletedCount,
	}
}
