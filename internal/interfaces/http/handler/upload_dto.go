package handler

import (
	"time"

	"github.com/catalogd/backend/internal/domain/upload"
)

// UploadJobResponse represents an upload job in API responses
type UploadJobResponse struct {
	ID                 string               `json:"id"`
	FileName           string               `json:"file_name"`
	TaskID             string               `json:"task_id,omitempty"`
	Status             string               `json:"status"`
	TotalRows          int                  `json:"total_rows"`
	ProcessedRows      int                  `json:"processed_rows"`
	SuccessCount       int                  `json:"success_count"`
	ErrorCount         int                  `json:"error_count"`
	CreatedCount       int                  `json:"created_count"`
	UpdatedCount       int                  `json:"updated_count"`
	SkippedCount       int                  `json:"skipped_count"`
	ProgressPercentage int                  `json:"progress_percentage"`
	Errors             []upload.ErrorDetail `json:"errors,omitempty"`
	Options            upload.Options       `json:"options"`
	StartedAt          *time.Time           `json:"started_at,omitempty"`
	CompletedAt        *time.Time           `json:"completed_at,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

func toUploadJobResponse(job *upload.Job) UploadJobResponse {
	errs, _ := job.DecodeErrors()
	opts, _ := job.Options()
	return UploadJobResponse{
		ID:                 job.ID.String(),
		FileName:           job.FileName,
		TaskID:             job.TaskID,
		Status:             string(job.Status),
		TotalRows:          job.TotalRows,
		ProcessedRows:      job.ProcessedRows,
		SuccessCount:       job.SuccessCount,
		ErrorCount:         job.ErrorCount,
		CreatedCount:       job.CreatedCount,
		UpdatedCount:       job.UpdatedCount,
		SkippedCount:       job.SkippedCount,
		ProgressPercentage: job.ProgressPercentage(),
		Errors:             errs,
		Options:            opts,
		StartedAt:          job.StartedAt,
		CompletedAt:        job.CompletedAt,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
	}
}

// UploadJobListResponse represents an upload job list item without error details
type UploadJobListResponse struct {
	ID                 string     `json:"id"`
	FileName           string     `json:"file_name"`
	Status             string     `json:"status"`
	TotalRows          int        `json:"total_rows"`
	ProcessedRows      int        `json:"processed_rows"`
	SuccessCount       int        `json:"success_count"`
	ErrorCount         int        `json:"error_count"`
	ProgressPercentage int        `json:"progress_percentage"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toUploadJobListResponses(jobs []*upload.Job) []UploadJobListResponse {
	out := make([]UploadJobListResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, UploadJobListResponse{
			ID:                 job.ID.String(),
			FileName:           job.FileName,
			Status:             string(job.Status),
			TotalRows:          job.TotalRows,
			ProcessedRows:      job.ProcessedRows,
			SuccessCount:       job.SuccessCount,
			ErrorCount:         job.ErrorCount,
			ProgressPercentage: job.ProgressPercentage(),
			StartedAt:          job.StartedAt,
			CompletedAt:        job.CompletedAt,
			CreatedAt:          job.CreatedAt,
		})
	}
	return out
}
