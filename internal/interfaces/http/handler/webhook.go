package handler

import (
	webhookapp "github.com/catalogd/backend/internal/application/webhook"
	"github.com/catalogd/backend/internal/domain/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WebhookHandler handles webhook subscription API endpoints
type WebhookHandler struct {
	BaseHandler
	webhooks *webhookapp.Service
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhooks *webhookapp.Service) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// RegisterRoutes registers webhook routes on the given group
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("", h.Create)
		webhooks.GET("", h.List)
		webhooks.GET("/event-types", h.EventTypes)
		webhooks.GET("/:id", h.Get)
		webhooks.PUT("/:id", h.Update)
		webhooks.DELETE("/:id", h.Delete)
		webhooks.POST("/:id/rotate-secret", h.RotateSecret)
		webhooks.POST("/:id/test", h.Test)
		webhooks.GET("/:id/logs", h.Logs)
	}
}

// CreateWebhookRequest represents a request to create a webhook subscription
type CreateWebhookRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	URL         string `json:"url" binding:"required,max=500"`
	EventType   string `json:"event_type" binding:"required"`
	Description string `json:"description"`
}

// UpdateWebhookRequest represents a request to update a webhook subscription
type UpdateWebhookRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	URL         string `json:"url" binding:"required,max=500"`
	EventType   string `json:"event_type" binding:"required"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// Create handles POST /webhooks. The generated signing secret is
// returned once in the response and never again.
func (h *WebhookHandler) Create(c *gin.Context) {
	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	wh, err := h.webhooks.Create(c.Request.Context(), req.Name, req.URL, webhook.EventType(req.EventType), req.Description)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toWebhookResponse(wh, true))
}

// Get handles GET /webhooks/:id
func (h *WebhookHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	wh, err := h.webhooks.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toWebhookResponse(wh, false))
}

// List handles GET /webhooks
func (h *WebhookHandler) List(c *gin.Context) {
	req, err := bindListRequest(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := toFilter(req)
	if eventType := c.Query("event_type"); eventType != "" {
		filter.Filters["event_type"] = eventType
	}
	if v, ok := c.GetQuery("is_active"); ok {
		filter.Filters["is_active"] = v == "true"
	}

	webhooks, total, err := h.webhooks.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toWebhookResponses(webhooks), total, req.Page, req.PageSize)
}

// Update handles PUT /webhooks/:id
func (h *WebhookHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	var req UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	wh, err := h.webhooks.Update(c.Request.Context(), id, req.Name, req.URL, webhook.EventType(req.EventType), req.Description, req.IsActive)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toWebhookResponse(wh, false))
}

// Delete handles DELETE /webhooks/:id
func (h *WebhookHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	if err := h.webhooks.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// RotateSecret handles POST /webhooks/:id/rotate-secret. The new
// secret is returned once in the response.
func (h *WebhookHandler) RotateSecret(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	wh, err := h.webhooks.RotateSecret(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toWebhookResponse(wh, true))
}

// Test handles POST /webhooks/:id/test, sending a sample payload to
// the endpoint and returning the delivery log entry.
func (h *WebhookHandler) Test(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	entry, err := h.webhooks.Test(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toWebhookLogResponse(entry))
}

// Logs handles GET /webhooks/:id/logs
func (h *WebhookHandler) Logs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid webhook ID format")
		return
	}

	req, err := bindListRequest(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	entries, total, err := h.webhooks.Logs(c.Request.Context(), id, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toWebhookLogResponses(entries), total, req.Page, req.PageSize)
}

// EventTypes handles GET /webhooks/event-types, listing the event
// types a webhook can subscribe to.
func (h *WebhookHandler) EventTypes(c *gin.Context) {
	types := webhook.AllEventTypes()
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	h.Success(c, out)
}
