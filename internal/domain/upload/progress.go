package upload

import (
	"context"
	"time"
)

// MaxSnapshotErrors caps how many error messages a snapshot carries
const MaxSnapshotErrors = 10

// ProgressSnapshot is the lightweight view of a running import served
// to polling clients. It lives in the cache so status requests do not
// hit the database on every poll.
type ProgressSnapshot struct {
	Status             JobStatus `json:"status"`
	ProgressPercentage int       `json:"progress_percentage"`
	TotalRows          int       `json:"total_rows"`
	ProcessedRows      int       `json:"processed_rows"`
	SuccessCount       int       `json:"success_count"`
	ErrorCount         int       `json:"error_count"`
	CreatedCount       int       `json:"created_count"`
	UpdatedCount       int       `json:"updated_count"`
	SkippedCount       int       `json:"skipped_count"`
	Errors             []string  `json:"errors"`
}

// Snapshot builds the cacheable progress view of the job, truncating
// the error list to MaxSnapshotErrors entries
func (j *Job) Snapshot() ProgressSnapshot {
	errors := j.ErrorMessages()
	if len(errors) > MaxSnapshotErrors {
		errors = errors[:MaxSnapshotErrors]
	}
	if errors == nil {
		errors = []string{}
	}
	return ProgressSnapshot{
		Status:             j.Status,
		ProgressPercentage: j.ProgressPercentage(),
		TotalRows:          j.TotalRows,
		ProcessedRows:      j.ProcessedRows,
		SuccessCount:       j.SuccessCount,
		ErrorCount:         j.ErrorCount,
		CreatedCount:       j.CreatedCount,
		UpdatedCount:       j.UpdatedCount,
		SkippedCount:       j.SkippedCount,
		Errors:             errors,
	}
}

// ProgressStore caches progress snapshots keyed by job id. A miss is
// reported as shared.ErrNotFound; callers fall back to the database.
type ProgressStore interface {
	Set(ctx context.Context, jobID string, snapshot ProgressSnapshot, ttl time.Duration) error
	Get(ctx context.Context, jobID string) (ProgressSnapshot, error)
	Delete(ctx context.Context, jobID string) error
}
