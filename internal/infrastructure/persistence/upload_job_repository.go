package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/upload"
)

// GormUploadJobRepository implements upload.JobRepository using GORM
type GormUploadJobRepository struct {
	db *gorm.DB
}

// NewGormUploadJobRepository creates a new GormUploadJobRepository
func NewGormUploadJobRepository(db *gorm.DB) *GormUploadJobRepository {
	return &GormUploadJobRepository{db: db}
}

// Create inserts a new upload job
func (r *GormUploadJobRepository) Create(ctx context.Context, job *upload.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// FindByID finds an upload job by ID
func (r *GormUploadJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*upload.Job, error) {
	var job upload.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// FindAll returns upload jobs ordered newest first with pagination
func (r *GormUploadJobRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*upload.Job, error) {
	query := r.applyFilters(r.db.WithContext(ctx).Model(&upload.Job{}), filter).
		Order("created_at DESC")

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var jobs []*upload.Job
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Count returns the number of jobs matching the filter
func (r *GormUploadJobRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilters(r.db.WithContext(ctx).Model(&upload.Job{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SaveStatus writes the status and completion timestamps only
func (r *GormUploadJobRepository) SaveStatus(ctx context.Context, job *upload.Job) error {
	return r.db.WithContext(ctx).Model(&upload.Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":       job.Status,
			"started_at":   job.StartedAt,
			"completed_at": job.CompletedAt,
			"updated_at":   job.UpdatedAt,
		}).Error
}

// SaveTaskID records the broker task id assigned to the job
func (r *GormUploadJobRepository) SaveTaskID(ctx context.Context, id uuid.UUID, taskID string) error {
	return r.db.WithContext(ctx).Model(&upload.Job{}).
		Where("id = ?", id).
		Update("task_id", taskID).Error
}

// SaveTotalRows writes the row count discovered in the counting pass
func (r *GormUploadJobRepository) SaveTotalRows(ctx context.Context, id uuid.UUID, totalRows int) error {
	return r.db.WithContext(ctx).Model(&upload.Job{}).
		Where("id = ?", id).
		Update("total_rows", totalRows).Error
}

// SaveCounters flushes the running counters only
func (r *GormUploadJobRepository) SaveCounters(ctx context.Context, job *upload.Job) error {
	return r.db.WithContext(ctx).Model(&upload.Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"processed_rows": job.ProcessedRows,
			"success_count":  job.SuccessCount,
			"error_count":    job.ErrorCount,
			"created_count":  job.CreatedCount,
			"updated_count":  job.UpdatedCount,
			"skipped_count":  job.SkippedCount,
			"updated_at":     time.Now(),
		}).Error
}

// SaveErrors flushes the accumulated error details and count
func (r *GormUploadJobRepository) SaveErrors(ctx context.Context, job *upload.Job) error {
	return r.db.WithContext(ctx).Model(&upload.Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"error_details": job.ErrorDetails,
			"error_count":   job.ErrorCount,
			"updated_at":    time.Now(),
		}).Error
}

// ListFinishedBefore returns terminal jobs completed before the cutoff
// that still have a stored file
func (r *GormUploadJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]*upload.Job, error) {
	var jobs []*upload.Job
	err := r.db.WithContext(ctx).
		Where("status IN ?", []upload.JobStatus{upload.JobStatusCompleted, upload.JobStatusFailed}).
		Where("completed_at < ?", cutoff).
		Where("file_path <> ''").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ClearFilePath blanks the stored file path after cleanup
func (r *GormUploadJobRepository) ClearFilePath(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&upload.Job{}).
		Where("id = ?", id).
		Update("file_path", "").Error
}

func (r *GormUploadJobRepository) applyFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if filter.Search != "" {
		query = query.Where("file_name ILIKE ?", "%"+filter.Search+"%")
	}
	return query
}

// Compile-time interface compliance check
var _ upload.JobRepository = (*GormUploadJobRepository)(nil)
