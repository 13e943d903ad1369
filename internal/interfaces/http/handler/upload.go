package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	uploadapp "github.com/catalogd/backend/internal/application/upload"
	"github.com/catalogd/backend/internal/domain/upload"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// progressStreamInterval is how often the SSE endpoint polls for snapshots.
const progressStreamInterval = time.Second

// UploadHandler handles CSV upload API endpoints
type UploadHandler struct {
	BaseHandler
	uploads *uploadapp.Service
	logger  *zap.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(uploads *uploadapp.Service, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{uploads: uploads, logger: logger}
}

// RegisterRoutes registers upload routes on the given group
func (h *UploadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	uploads := rg.Group("/uploads")
	{
		uploads.POST("", h.Create)
		uploads.GET("", h.List)
		uploads.GET("/:id", h.Get)
		uploads.GET("/:id/progress", h.Progress)
		uploads.GET("/:id/progress/stream", h.StreamProgress)
	}
}

// Create handles POST /uploads. Accepts a multipart CSV file plus
// import options and queues the import for background processing.
func (h *UploadHandler) Create(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "A CSV file is required in the 'file' field")
		return
	}

	opts := upload.DefaultOptions()
	if raw := c.PostForm("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			h.BadRequest(c, "Invalid options JSON: "+err.Error())
			return
		}
	}
	if v := c.PostForm("skip_duplicates"); v != "" {
		opts.SkipDuplicates = v == "true"
	}
	if v := c.PostForm("deactivate_missing"); v != "" {
		opts.DeactivateMissing = v == "true"
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.InternalError(c, "Failed to read uploaded file")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			h.logger.Warn("failed to close uploaded file", zap.Error(err))
		}
	}()

	job, err := h.uploads.Accept(c.Request.Context(), fileHeader.Filename, file, opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, toUploadJobResponse(job))
}

// Get handles GET /uploads/:id
func (h *UploadHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid upload ID format")
		return
	}

	job, err := h.uploads.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toUploadJobResponse(job))
}

// List handles GET /uploads
func (h *UploadHandler) List(c *gin.Context) {
	req, err := bindListRequest(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := toFilter(req)
	if status := c.Query("status"); status != "" {
		if !upload.JobStatus(status).IsValid() {
			h.BadRequest(c, "Invalid status filter: "+status)
			return
		}
		filter.Filters["status"] = status
	}

	jobs, total, err := h.uploads.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, toUploadJobListResponses(jobs), total, req.Page, req.PageSize)
}

// Progress handles GET /uploads/:id/progress
func (h *UploadHandler) Progress(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid upload ID format")
		return
	}

	snapshot, err := h.uploads.Progress(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snapshot)
}

// StreamProgress handles GET /uploads/:id/progress/stream as Server-Sent
// Events. One "progress" event per snapshot; the terminal snapshot is
// always the last event before the stream closes.
func (h *UploadHandler) StreamProgress(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid upload ID format")
		return
	}

	snapshots, err := h.uploads.StreamProgress(c.Request.Context(), id, progressStreamInterval)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			return
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			h.sendProgressEvent(c.Writer, snapshot)
			c.Writer.Flush()
		}
	}
}

func (h *UploadHandler) sendProgressEvent(w io.Writer, snapshot upload.ProgressSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Warn("failed to marshal progress snapshot", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
}
