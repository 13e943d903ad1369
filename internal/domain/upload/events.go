package upload

import (
	"github.com/catalogd/backend/internal/domain/shared"
)

const (
	EventTypeUploadStarted   = "upload.started"
	EventTypeUploadCompleted = "upload.completed"
	EventTypeUploadFailed    = "upload.failed"
)

// AggregateTypeUploadJob is the aggregate type name for upload events
const AggregateTypeUploadJob = "UploadJob"

// StartedEvent is published when the import engine picks up a job
type StartedEvent struct {
	shared.BaseDomainEvent
	Job *Job
}

// NewStartedEvent creates an upload started event
func NewStartedEvent(job *Job) *StartedEvent {
	return &StartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUploadStarted, AggregateTypeUploadJob, job.ID),
		Job:             job,
	}
}

// Payload returns the event payload
func (e *StartedEvent) Payload() map[string]any {
	return map[string]any{
		"upload_id": e.Job.ID.String(),
		"file_name": e.Job.FileName,
	}
}

// CompletedEvent is published when a job reaches the completed state
type CompletedEvent struct {
	shared.BaseDomainEvent
	Job *Job
}

// NewCompletedEvent creates an upload completed event
func NewCompletedEvent(job *Job) *CompletedEvent {
	return &CompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUploadCompleted, AggregateTypeUploadJob, job.ID),
		Job:             job,
	}
}

// Payload returns the event payload
func (e *CompletedEvent) Payload() map[string]any {
	return map[string]any{
		"upload_id":     e.Job.ID.String(),
		"file_name":     e.Job.FileName,
		"total_rows":    e.Job.TotalRows,
		"success_count": e.Job.SuccessCount,
		"error_count":   e.Job.ErrorCount,
		"created_count": e.Job.CreatedCount,
		"updated_count": e.Job.UpdatedCount,
		"skipped_count": e.Job.SkippedCount,
	}
}

// FailedEvent is published when a job reaches the failed state
type FailedEvent struct {
	shared.BaseDomainEvent
	Job    *Job
	Reason string
}

// NewFailedEvent creates an upload failed event
func NewFailedEvent(job *Job, reason string) *FailedEvent {
	return &FailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUploadFailed, AggregateTypeUploadJob, job.ID),
		Job:             job,
		Reason:          reason,
	}
}

// Payload returns the event payload
func (e *FailedEvent) Payload() map[string]any {
	return map[string]any{
		"upload_id": e.Job.ID.String(),
		"file_name": e.Job.FileName,
		"error":     e.Reason,
	}
}
