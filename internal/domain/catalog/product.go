package catalog

import (
	"strings"
	"time"

	"github.com/catalogd/backend/internal/domain/shared"
)

// Storage limits for product fields
const (
	MaxSKULength  = 255
	MaxNameLength = 500
)

// Product represents a catalog product. Identity is the SKU, compared
// case-insensitively: SKULower is always the lowercased, trimmed form of
// SKU and carries the unique constraint. SKU keeps the display casing of
// the most recent write.
type Product struct {
	shared.BaseAggregateRoot
	SKU         string `gorm:"type:varchar(255);not null"`
	SKULower    string `gorm:"type:varchar(255);not null;uniqueIndex:idx_products_sku_lower"`
	Name        string `gorm:"type:varchar(500);not null"`
	Description string `gorm:"type:text;not null;default:''"`
	IsActive    bool   `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a new active product
func NewProduct(sku, name, description string) (*Product, error) {
	sku = strings.TrimSpace(sku)
	if err := validateSKU(sku); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	product := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SKU:               sku,
		SKULower:          strings.ToLower(sku),
		Name:              name,
		Description:       description,
		IsActive:          true,
	}

	product.AddDomainEvent(NewProductCreatedEvent(product))

	return product, nil
}

// Update updates the product's basic information
func (p *Product) Update(name, description string) error {
	if err := validateName(name); err != nil {
		return err
	}

	p.Name = name
	p.Description = description
	p.UpdatedAt = time.Now()

	p.AddDomainEvent(NewProductUpdatedEvent(p))

	return nil
}

// SetSKU replaces the SKU, keeping SKULower in sync
func (p *Product) SetSKU(sku string) error {
	sku = strings.TrimSpace(sku)
	if err := validateSKU(sku); err != nil {
		return err
	}

	p.SKU = sku
	p.SKULower = strings.ToLower(sku)
	p.UpdatedAt = time.Now()

	return nil
}

// Activate activates the product
func (p *Product) Activate() {
	if p.IsActive {
		return
	}
	p.IsActive = true
	p.UpdatedAt = time.Now()
	p.AddDomainEvent(NewProductUpdatedEvent(p))
}

// Deactivate deactivates the product
func (p *Product) Deactivate() {
	if !p.IsActive {
		return
	}
	p.IsActive = false
	p.UpdatedAt = time.Now()
	p.AddDomainEvent(NewProductUpdatedEvent(p))
}

// Status returns a human-readable status label
func (p *Product) Status() string {
	if p.IsActive {
		return "Active"
	}
	return "Inactive"
}

// NormalizeSKU returns the canonical comparison form of a SKU
func NormalizeSKU(sku string) string {
	return strings.ToLower(strings.TrimSpace(sku))
}

func validateSKU(sku string) error {
	if sku == "" {
		return shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if len(sku) > MaxSKULength {
		return shared.NewDomainError("INVALID_SKU", "SKU cannot exceed 255 characters")
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 500 characters")
	}
	return nil
}
