package importer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/upload"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

func TestHandleProcessCSVCompletesJob(t *testing.T) {
	env := setupImportTest(t, Config{})
	ctx := context.Background()

	path := writeCSVFile(t, "sku,name,description\n"+
		"WIDGET-1,Widget One,\n"+
		"WIDGET-2,Widget Two,\n")
	job, err := upload.NewJob("products.csv", path, upload.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, env.jobs.Create(ctx, job))

	events := &capturingPublisher{}
	handler := NewTaskHandler(env.service, env.jobs, events, zap.NewNop())

	require.NoError(t, handler.HandleProcessCSV(ctx, "task-123", map[string]any{
		"upload_id": job.ID.String(),
	}))

	stored, err := env.jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, upload.JobStatusCompleted, stored.Status)
	assert.Equal(t, "task-123", stored.TaskID)
	assert.Equal(t, 2, stored.CreatedCount)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.CompletedAt)

	assert.Equal(t, []string{"upload.started", "upload.completed"}, events.eventTypes())

	snapshot, err := env.progress.Get(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, upload.JobStatusCompleted, snapshot.Status)
}

func TestHandleProcessCSVMarksJobFailedOnBadFile(t *testing.T) {
	env := setupImportTest(t, Config{})
	ctx := context.Background()

	// Header without the required columns is a job-level failure
	path := writeCSVFile(t, "id,title\n1,whatever\n")
	job, err := upload.NewJob("products.csv", path, upload.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, env.jobs.Create(ctx, job))

	events := &capturingPublisher{}
	handler := NewTaskHandler(env.service, env.jobs, events, zap.NewNop())

	// The task itself succeeds; retrying a partial import would
	// double-process rows
	require.NoError(t, handler.HandleProcessCSV(ctx, "task-456", map[string]any{
		"upload_id": job.ID.String(),
	}))

	stored, err := env.jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, upload.JobStatusFailed, stored.Status)
	assert.NotZero(t, stored.ErrorCount)

	assert.Equal(t, []string{"upload.started", "upload.failed"}, events.eventTypes())
}

func TestHandleProcessCSVSkipsTerminalJob(t *testing.T) {
	env := setupImportTest(t, Config{})
	ctx := context.Background()

	path := writeCSVFile(t, "sku,name,description\nWIDGET-1,Widget One,\n")
	job, err := upload.NewJob("products.csv", path, upload.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, job.MarkProcessing())
	require.NoError(t, job.MarkCompleted())
	require.NoError(t, env.jobs.Create(ctx, job))

	events := &capturingPublisher{}
	handler := NewTaskHandler(env.service, env.jobs, events, zap.NewNop())

	require.NoError(t, handler.HandleProcessCSV(ctx, "task-789", map[string]any{
		"upload_id": job.ID.String(),
	}))

	assert.Empty(t, events.eventTypes())
}

func TestHandleProcessCSVRejectsBadPayload(t *testing.T) {
	env := setupImportTest(t, Config{})
	handler := NewTaskHandler(env.service, env.jobs, &capturingPublisher{}, zap.NewNop())

	err := handler.HandleProcessCSV(context.Background(), "task-1", map[string]any{})
	require.Error(t, err)

	err = handler.HandleProcessCSV(context.Background(), "task-2", map[string]any{"upload_id": "not-a-uuid"})
	require.Error(t, err)
}
