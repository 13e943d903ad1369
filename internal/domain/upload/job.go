package upload

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/catalogd/backend/internal/domain/shared"
)

// JobStatus represents the lifecycle state of an upload job. The state
// machine only moves forward: pending -> processing -> completed|failed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsValid checks if the status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ErrorDetail is one per-row failure recorded on the ledger. Row 0 is
// reserved for job-level failures.
type ErrorDetail struct {
	Row       int       `json:"row"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Options control how the import engine treats incoming rows.
// DeactivateMissing is accepted and persisted but not acted on by the
// engine; the intended policy is still undecided upstream.
type Options struct {
	SkipDuplicates    bool `json:"skip_duplicates"`
	DeactivateMissing bool `json:"deactivate_missing"`
}

// DefaultOptions returns the options used when the caller supplies none
func DefaultOptions() Options {
	return Options{SkipDuplicates: true}
}

// Job is the durable ledger for one CSV import run. It is mutated only
// by the import engine while status-polling readers observe it
// concurrently, so persistence must touch individual fields rather than
// rewriting whole records.
type Job struct {
	shared.BaseAggregateRoot
	FileName string `gorm:"type:varchar(255);not null"`
	FilePath string `gorm:"type:varchar(500);not null"`
	// TaskID correlates the job with the broker task processing it
	TaskID string    `gorm:"type:varchar(255)"`
	Status JobStatus `gorm:"type:varchar(20);not null;default:'pending';index"`

	TotalRows     int `gorm:"not null;default:0"`
	ProcessedRows int `gorm:"not null;default:0"`
	SuccessCount  int `gorm:"not null;default:0"`
	ErrorCount    int `gorm:"not null;default:0"`
	CreatedCount  int `gorm:"not null;default:0"`
	UpdatedCount  int `gorm:"not null;default:0"`
	SkippedCount  int `gorm:"not null;default:0"`

	// ErrorDetails is a JSON array of ErrorDetail entries, ordered by
	// insertion
	ErrorDetails string `gorm:"type:jsonb;not null;default:'[]'"`

	ImportOptions string `gorm:"type:jsonb;not null;default:'{}'"`

	StartedAt   *time.Time
	CompletedAt *time.Time
}

// TableName returns the table name for GORM
func (Job) TableName() string {
	return "upload_jobs"
}

// NewJob creates a pending upload job for a stored CSV file
func NewJob(fileName, filePath string, opts Options) (*Job, error) {
	if fileName == "" {
		return nil, shared.NewDomainError("INVALID_FILE_NAME", "File name cannot be empty")
	}
	if filePath == "" {
		return nil, shared.NewDomainError("INVALID_FILE_PATH", "File path cannot be empty")
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal import options: %w", err)
	}

	return &Job{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		FileName:          fileName,
		FilePath:          filePath,
		Status:            JobStatusPending,
		ErrorDetails:      "[]",
		ImportOptions:     string(optsJSON),
	}, nil
}

// Options decodes the persisted import options
func (j *Job) Options() (Options, error) {
	opts := DefaultOptions()
	if j.ImportOptions == "" {
		return opts, nil
	}
	if err := json.Unmarshal([]byte(j.ImportOptions), &opts); err != nil {
		return Options{}, fmt.Errorf("failed to unmarshal import options: %w", err)
	}
	return opts, nil
}

// MarkProcessing transitions the job from pending to processing and
// records the start time
func (j *Job) MarkProcessing() error {
	if j.Status != JobStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot start processing from state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// MarkCompleted transitions the job to completed
func (j *Job) MarkCompleted() error {
	if j.Status != JobStatusProcessing {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete from state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// MarkFailed transitions the job to failed. A non-empty reason is
// recorded as a row-0 error entry.
func (j *Job) MarkFailed(reason string) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail from terminal state: %s", j.Status))
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.UpdatedAt = now
	if reason != "" {
		if err := j.AddError(0, reason); err != nil {
			return err
		}
	}
	return nil
}

// AddError appends one error entry and bumps the error counter
func (j *Job) AddError(row int, message string) error {
	details, err := j.DecodeErrors()
	if err != nil {
		return err
	}
	details = append(details, ErrorDetail{
		Row:       row,
		Error:     message,
		Timestamp: time.Now(),
	})
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal error details: %w", err)
	}
	j.ErrorDetails = string(data)
	j.ErrorCount = len(details)
	j.UpdatedAt = time.Now()
	return nil
}

// DecodeErrors unmarshals the persisted error list
func (j *Job) DecodeErrors() ([]ErrorDetail, error) {
	if j.ErrorDetails == "" || j.ErrorDetails == "[]" {
		return []ErrorDetail{}, nil
	}
	var details []ErrorDetail
	if err := json.Unmarshal([]byte(j.ErrorDetails), &details); err != nil {
		return nil, fmt.Errorf("failed to unmarshal error details: %w", err)
	}
	return details, nil
}

// ErrorMessages returns the recorded error messages in insertion order
func (j *Job) ErrorMessages() []string {
	details, err := j.DecodeErrors()
	if err != nil {
		return nil
	}
	messages := make([]string, len(details))
	for i, d := range details {
		messages[i] = d.Error
	}
	return messages
}

// ProgressPercentage returns floor(processed/total*100), 0 when the
// total is unknown or zero
func (j *Job) ProgressPercentage() int {
	if j.TotalRows == 0 {
		return 0
	}
	return j.ProcessedRows * 100 / j.TotalRows
}

// Duration returns the elapsed time from start to completion, or to now
// for a job still running. Zero if the job never started.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return end.Sub(*j.StartedAt)
}
