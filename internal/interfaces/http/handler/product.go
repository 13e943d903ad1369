package handler

import (
	"fmt"
	"time"

	catalogapp "github.com/catalogd/backend/internal/application/catalog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProductHandler handles product catalog API endpoints
type ProductHandler struct {
	BaseHandler
	products *catalogapp.ProductService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products *catalogapp.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// RegisterRoutes registers product routes on the given group
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/products")
	{
		products.POST("", h.Create)
		products.GET("", h.List)
		products.GET("/stats", h.Stats)
		products.GET("/export", h.Export)
		products.POST("/bulk-delete", h.BulkDelete)
		products.GET("/sku/:sku", h.GetBySKU)
		products.GET("/sku/:sku/audit", h.AuditTrail)
		products.GET("/:id", h.Get)
		products.PUT("/:id", h.Update)
		products.DELETE("/:id", h.Delete)
	}
}

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	SKU         string `json:"sku" binding:"required,min=1,max=255"`
	Name        string `json:"name" binding:"required,min=1,max=500"`
	Description string `json:"description"`
}

// UpdateProductRequest represents a request to update a product
type UpdateProductRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=500"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// BulkDeleteRequest represents a request to delete multiple products
type BulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=1000,dive,uuid"`
}

// BulkDeleteResponse reports how many products were removed
type BulkDeleteResponse struct {
	Deleted   int64 `json:"deleted"`
	Requested int   `json:"requested"`
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	product, err := h.products.Create(c.Request.Context(), req.SKU, req.Name, req.Description, getUser(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toProductResponse(product))
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toProductResponse(product))
}

// GetBySKU handles GET /products/sku/:sku
func (h *ProductHandler) GetBySKU(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		h.BadRequest(c, "SKU is required")
		return
	}

	product, err := h.products.GetBySKU(c.Request.Context(), sku)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toProductResponse(product))
}

// List handles GET /products
func (h *ProductHandler) List(c *gin.Context) {
	req, err := bindListRequest(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := toFilter(req)
	if v, ok := c.GetQuery("is_active"); ok {
		filter.Filters["is_active"] = v == "true"
	}

	products, total, err := h.products.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toProductResponses(products), total, req.Page, req.PageSize)
}

// Update handles PUT /products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	product, err := h.products.Update(c.Request.Context(), id, req.Name, req.Description, isActive, getUser(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toProductResponse(product))
}

// Delete handles DELETE /products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	if err := h.products.Delete(c.Request.Context(), id, getUser(c)); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// BulkDelete handles POST /products/bulk-delete
func (h *ProductHandler) BulkDelete(c *gin.Context) {
	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid product ID format: "+raw)
			return
		}
		ids = append(ids, id)
	}

	deleted, err := h.products.BulkDelete(c.Request.Context(), ids, getUser(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, BulkDeleteResponse{Deleted: deleted, Requested: len(req.IDs)})
}

// Stats handles GET /products/stats
func (h *ProductHandler) Stats(c *gin.Context) {
	stats, err := h.products.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

// Export handles GET /products/export, streaming the catalog as CSV
func (h *ProductHandler) Export(c *gin.Context) {
	fileName := fmt.Sprintf("products_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)

	if err := h.products.ExportCSV(c.Request.Context(), c.Writer); err != nil {
		// Headers may already be written; nothing sane to send at this point.
		_ = c.Error(err)
	}
}

// AuditTrail handles GET /products/sku/:sku/audit
func (h *ProductHandler) AuditTrail(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		h.BadRequest(c, "SKU is required")
		return
	}

	req, err := bindListRequest(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	entries, err := h.products.AuditTrail(c.Request.Context(), sku, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]AuditLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toAuditLogResponse(entry))
	}
	h.Success(c, out)
}
