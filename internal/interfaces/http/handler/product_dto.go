package handler

import (
	"encoding/json"
	"time"

	"github.com/catalogd/backend/internal/domain/catalog"
)

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID.String(),
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		IsActive:    p.IsActive,
		Status:      p.Status(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toProductResponses(products []*catalog.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

// AuditLogResponse represents an audit trail entry in API responses
type AuditLogResponse struct {
	ID         string         `json:"id"`
	ProductSKU string         `json:"product_sku"`
	Action     string         `json:"action"`
	Changes    map[string]any `json:"changes"`
	User       string         `json:"user"`
	Timestamp  time.Time      `json:"timestamp"`
}

func toAuditLogResponse(entry *catalog.AuditLog) AuditLogResponse {
	changes := map[string]any{}
	if entry.Changes != "" {
		_ = json.Unmarshal([]byte(entry.Changes), &changes)
	}
	return AuditLogResponse{
		ID:         entry.ID.String(),
		ProductSKU: entry.ProductSKU,
		Action:     string(entry.Action),
		Changes:    changes,
		User:       entry.User,
		Timestamp:  entry.Timestamp,
	}
}
