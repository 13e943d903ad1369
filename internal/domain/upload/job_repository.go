package upload

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/catalogd/backend/internal/domain/shared"
)

// JobRepository persists upload jobs. Writers update individual
// fields so concurrent status readers never observe a half-written
// record and the engine never clobbers columns it does not own.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]*Job, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// SaveStatus writes the status and the timestamps that changed
	// with it
	SaveStatus(ctx context.Context, job *Job) error
	// SaveTaskID records the broker task id assigned to the job
	SaveTaskID(ctx context.Context, id uuid.UUID, taskID string) error
	// SaveTotalRows writes the row count discovered in the first pass
	SaveTotalRows(ctx context.Context, id uuid.UUID, totalRows int) error
	// SaveCounters flushes the running counters after each chunk
	SaveCounters(ctx context.Context, job *Job) error
	// SaveErrors flushes the accumulated error details and count
	SaveErrors(ctx context.Context, job *Job) error

	// ListFinishedBefore returns terminal jobs whose completion time
	// is before the cutoff and that still have a stored file
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]*Job, error)
	// ClearFilePath blanks the stored file path after cleanup
	ClearFilePath(ctx context.Context, id uuid.UUID) error
}
