package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/upload"
)

// TaskTypeProcessCSV is the queue task type for CSV import runs
const TaskTypeProcessCSV = "import.process_csv"

// TaskHandler executes queued import tasks
type TaskHandler struct {
	service *Service
	jobs    upload.JobRepository
	events  shared.EventPublisher
	logger  *zap.Logger
}

// NewTaskHandler creates the import task handler
func NewTaskHandler(service *Service, jobs upload.JobRepository, events shared.EventPublisher, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		jobs:    jobs,
		events:  events,
		logger:  logger.Named("import_task"),
	}
}

// Register installs the handler on the task queue
func (h *TaskHandler) Register(queue shared.TaskQueue) {
	queue.Register(TaskTypeProcessCSV, h.HandleProcessCSV)
}

// HandleProcessCSV runs one CSV import end to end. A job-level failure
// marks the job failed rather than erroring the task: re-running a
// partially applied import would double-process rows.
func (h *TaskHandler) HandleProcessCSV(ctx context.Context, taskID string, payload map[string]any) error {
	uploadID, ok := payload["upload_id"].(string)
	if !ok || uploadID == "" {
		return fmt.Errorf("task payload missing upload_id")
	}
	id, err := uuid.Parse(uploadID)
	if err != nil {
		return fmt.Errorf("invalid upload_id %q: %w", uploadID, err)
	}

	job, err := h.jobs.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load upload job %s: %w", uploadID, err)
	}
	if job.Status.IsTerminal() {
		h.logger.Warn("Skipping upload job already in terminal state",
			zap.String("upload_id", uploadID),
			zap.String("status", string(job.Status)),
		)
		return nil
	}

	if err := h.jobs.SaveTaskID(ctx, job.ID, taskID); err != nil {
		h.logger.Error("Failed to record task id", zap.String("upload_id", uploadID), zap.Error(err))
	}
	job.TaskID = taskID

	if err := job.MarkProcessing(); err != nil {
		return err
	}
	if err := h.jobs.SaveStatus(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	h.service.publishProgress(ctx, job)
	h.publish(ctx, upload.NewStartedEvent(job))

	h.logger.Info("Import started",
		zap.String("upload_id", uploadID),
		zap.String("file_name", job.FileName),
	)

	if runErr := h.service.Run(ctx, job); runErr != nil {
		h.fail(ctx, job, runErr)
		return nil
	}

	if err := job.MarkCompleted(); err != nil {
		return err
	}
	if err := h.jobs.SaveStatus(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	h.service.publishProgress(ctx, job)
	h.publish(ctx, upload.NewCompletedEvent(job))

	h.logger.Info("Import completed",
		zap.String("upload_id", uploadID),
		zap.Int("total_rows", job.TotalRows),
		zap.Int("created", job.CreatedCount),
		zap.Int("updated", job.UpdatedCount),
		zap.Int("skipped", job.SkippedCount),
		zap.Int("errors", job.ErrorCount),
		zap.Duration("duration", job.Duration()),
	)
	return nil
}

func (h *TaskHandler) fail(ctx context.Context, job *upload.Job, cause error) {
	h.logger.Error("Import failed",
		zap.String("upload_id", job.ID.String()),
		zap.Error(cause),
	)

	if err := job.MarkFailed(cause.Error()); err != nil {
		h.logger.Error("Failed to mark job failed", zap.String("upload_id", job.ID.String()), zap.Error(err))
		return
	}
	if err := h.jobs.SaveStatus(ctx, job); err != nil {
		h.logger.Error("Failed to persist failed status", zap.String("upload_id", job.ID.String()), zap.Error(err))
	}
	if err := h.jobs.SaveErrors(ctx, job); err != nil {
		h.logger.Error("Failed to persist job errors", zap.String("upload_id", job.ID.String()), zap.Error(err))
	}
	h.service.publishProgress(ctx, job)
	h.publish(ctx, upload.NewFailedEvent(job, cause.Error()))
}

func (h *TaskHandler) publish(ctx context.Context, event shared.DomainEvent) {
	if err := h.events.Publish(ctx, event); err != nil {
		h.logger.Error("Failed to publish event",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}
