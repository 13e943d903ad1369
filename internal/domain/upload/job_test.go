package upload

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	t.Run("creates pending job with options", func(t *testing.T) {
		job, err := NewJob("products.csv", "/uploads/2026/01/abc_products.csv", Options{SkipDuplicates: true})
		require.NoError(t, err)

		assert.Equal(t, JobStatusPending, job.Status)
		assert.Equal(t, "products.csv", job.FileName)
		assert.Equal(t, "[]", job.ErrorDetails)
		assert.NotEmpty(t, job.ID)

		opts, err := job.Options()
		require.NoError(t, err)
		assert.True(t, opts.SkipDuplicates)
		assert.False(t, opts.DeactivateMissing)
	})

	t.Run("fails without file name", func(t *testing.T) {
		_, err := NewJob("", "/some/path", DefaultOptions())
		require.Error(t, err)
	})

	t.Run("fails without file path", func(t *testing.T) {
		_, err := NewJob("products.csv", "", DefaultOptions())
		require.Error(t, err)
	})
}

func TestJobStateMachine(t *testing.T) {
	newJob := func(t *testing.T) *Job {
		job, err := NewJob("products.csv", "/uploads/products.csv", DefaultOptions())
		require.NoError(t, err)
		return job
	}

	t.Run("pending to processing to completed", func(t *testing.T) {
		job := newJob(t)

		require.NoError(t, job.MarkProcessing())
		assert.Equal(t, JobStatusProcessing, job.Status)
		require.NotNil(t, job.StartedAt)

		require.NoError(t, job.MarkCompleted())
		assert.Equal(t, JobStatusCompleted, job.Status)
		require.NotNil(t, job.CompletedAt)
		assert.True(t, job.Status.IsTerminal())
	})

	t.Run("cannot complete a pending job", func(t *testing.T) {
		job := newJob(t)
		require.Error(t, job.MarkCompleted())
	})

	t.Run("cannot process twice", func(t *testing.T) {
		job := newJob(t)
		require.NoError(t, job.MarkProcessing())
		require.Error(t, job.MarkProcessing())
	})

	t.Run("failure records a row-0 error", func(t *testing.T) {
		job := newJob(t)
		require.NoError(t, job.MarkProcessing())
		require.NoError(t, job.MarkFailed("file vanished"))

		assert.Equal(t, JobStatusFailed, job.Status)
		details, err := job.DecodeErrors()
		require.NoError(t, err)
		require.Len(t, details, 1)
		assert.Equal(t, 0, details[0].Row)
		assert.Equal(t, "file vanished", details[0].Error)
		assert.Equal(t, 1, job.ErrorCount)
	})

	t.Run("pending jobs can fail directly", func(t *testing.T) {
		job := newJob(t)
		require.NoError(t, job.MarkFailed("queue handler missing"))
		assert.Equal(t, JobStatusFailed, job.Status)
	})

	t.Run("terminal jobs cannot fail again", func(t *testing.T) {
		job := newJob(t)
		require.NoError(t, job.MarkProcessing())
		require.NoError(t, job.MarkCompleted())
		require.Error(t, job.MarkFailed("too late"))
	})
}

func TestJobErrors(t *testing.T) {
	job, err := NewJob("products.csv", "/uploads/products.csv", DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, job.AddError(3, "Missing required field: name"))
	require.NoError(t, job.AddError(7, "SKU cannot be empty"))

	details, err := job.DecodeErrors()
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, 3, details[0].Row)
	assert.Equal(t, 7, details[1].Row)
	assert.Equal(t, 2, job.ErrorCount)

	assert.Equal(t, []string{"Missing required field: name", "SKU cannot be empty"}, job.ErrorMessages())
}

func TestJobProgressPercentage(t *testing.T) {
	job, err := NewJob("products.csv", "/uploads/products.csv", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, job.ProgressPercentage())

	job.TotalRows = 3
	job.ProcessedRows = 1
	assert.Equal(t, 33, job.ProgressPercentage())

	job.ProcessedRows = 3
	assert.Equal(t, 100, job.ProgressPercentage())
}

func TestJobSnapshot(t *testing.T) {
	job, err := NewJob("products.csv", "/uploads/products.csv", DefaultOptions())
	require.NoError(t, err)

	job.TotalRows = 100
	job.ProcessedRows = 40
	job.SuccessCount = 38
	job.CreatedCount = 30
	job.UpdatedCount = 8

	for i := 1; i <= MaxSnapshotErrors+5; i++ {
		require.NoError(t, job.AddError(i, fmt.Sprintf("row %d broken", i)))
	}

	snap := job.Snapshot()
	assert.Equal(t, JobStatusPending, snap.Status)
	assert.Equal(t, 40, snap.ProgressPercentage)
	assert.Equal(t, 100, snap.TotalRows)
	assert.Equal(t, 38, snap.SuccessCount)
	assert.Equal(t, MaxSnapshotErrors+5, snap.ErrorCount)
	// Error list is truncated, the counter is not
	assert.Len(t, snap.Errors, MaxSnapshotErrors)
	assert.Equal(t, "row 1 broken", snap.Errors[0])
}
