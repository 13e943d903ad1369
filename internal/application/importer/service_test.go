package importer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/catalogd/backend/internal/domain/catalog"
	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/upload"
	"github.com/catalogd/backend/internal/infrastructure/persistence"
)

// memProgressStore keeps snapshots in memory for assertions
type memProgressStore struct {
	mu        sync.Mutex
	snapshots map[string]upload.ProgressSnapshot
}

func newMemProgressStore() *memProgressStore {
	return &memProgressStore{snapshots: make(map[string]upload.ProgressSnapshot)}
}

func (s *memProgressStore) Set(_ context.Context, jobID string, snapshot upload.ProgressSnapshot, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[jobID] = snapshot
	return nil
}

func (s *memProgressStore) Get(_ context.Context, jobID string) (upload.ProgressSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.snapshots[jobID]
	if !ok {
		return upload.ProgressSnapshot{}, shared.ErrNotFound
	}
	return snapshot, nil
}

func (s *memProgressStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, jobID)
	return nil
}

type importTestEnv struct {
	service  *Service
	products *persistence.GormProductRepository
	jobs     *persistence.GormUploadJobRepository
	progress *memProgressStore
}

func setupImportTest(t *testing.T, cfg Config) *importTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&catalog.Product{}, &upload.Job{}))

	products := persistence.NewGormProductRepository(db)
	jobs := persistence.NewGormUploadJobRepository(db)
	progress := newMemProgressStore()

	return &importTestEnv{
		service:  NewService(products, jobs, progress, zap.NewNop(), cfg),
		products: products,
		jobs:     jobs,
		progress: progress,
	}
}

func writeCSVFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newProcessingJob(t *testing.T, env *importTestEnv, filePath string, opts upload.Options) *upload.Job {
	t.Helper()
	job, err := upload.NewJob("products.csv", filePath, opts)
	require.NoError(t, err)
	require.NoError(t, env.jobs.Create(context.Background(), job))
	require.NoError(t, job.MarkProcessing())
	require.NoError(t, env.jobs.SaveStatus(context.Background(), job))
	return job
}

func TestServiceRunCreatesProducts(t *testing.T) {
	env := setupImportTest(t, Config{})
	ctx := context.Background()

	path := writeCSVFile(t, "sku,name,description\n"+
		"WIDGET-1,Widget One,First widget\n"+
		"WIDGET-2,Widget Two,\n"+
		"WIDGET-3,Widget Three,Third widget\n")
	job := newProcessingJob(t, env, path, upload.DefaultOptions())

	require.NoError(t, env.service.Run(ctx, job))

	assert.Equal(t, 3, job.TotalRows)
	assert.Equal(t, 3, job.ProcessedRows)
	assert.Equal(t, 3, job.CreatedCount)
	assert.Equal(t, 3, job.SuccessCount)
	assert.Equal(t, 0, job.UpdatedCount)
	assert.Equal(t, 0, job.SkippedCount)
	assert.Equal(t, 0, job.ErrorCount)

	count, err := env.products.Count(ctx, shared.NewFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	product, err := env.products.FindBySKULower(ctx, "widget-2")
	require.NoError(t, err)
	assert.Equal(t, "WIDGET-2", product.SKU)
	assert.Equal(t, "Widget Two", product.Name)
	assert.True(t, product.IsActive)
}

func TestServiceRunSkipsExistingWhenConfigured(t *testing.T) {
	env := setupImportTest(t, Config{})
	ctx := context.Background()

	existing, err := catalog.NewProduct("WIDGET-1", "Original Name", "original")
	require.NoError(t, err)
	require.NoError(t, env.products.Create(ctx, existing))

	path := writeCSVFile(t, "sku,name,description\n"+
		"widget-1,Renamed Widget,changed\n"+
		"WIDGET-2,Widget Two,\n")
	job := newProcessingJob(t, env, path, upload.Options{SkipDuplicates: true})

	require.NoError(t, env.service.Run(ctx, job))

	assert.Equal(t, 1, job.CreatedCount)
	assert.Equal(t, 0, job.UpdatedCount)
	assert.Equal(t, 1, job.SkippedCount)
	// Skipped rows are not successes; only creates and updates count
	assert.Equal(t, 1, job.SuccessCount)

	product, err := env.products.FindBySKULower(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, "Original Name", product.Name)
}

func TestServiceRunUpdatesExisting(t *testing.T) {
	env := setupImportTest(t, Config{})
	ctx := context.Background()

	existing, err := catalog.NewProduct("WIDGET-1", "Original Name", "original")
	require.NoError(t, err)
	require.NoError(t, env.products.Create(ctx, existing))

	path := writeCSVFile(t, "sku,name,description\n"+
		"Widget-1,Renamed Widget,changed\n")
	job := newProcessingJob(t, env, path, upload.Options{SkipDuplicates: false})

	require.NoError(t, env.service.Run(ctx, job))

	assert.Equal(t, 0, job.CreatedCount)
	assert.Equal(t, 1, job.UpdatedCount)
	assert.Equal(t, 0, job.SkippedCount)

	product, err := env.products.FindBySKULower(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed Widget", product.Name)
	assert.Equal(t, "changed", product.Description)
	// The stored SKU keeps the casing of the first import
	assert.Equal(t, "WIDGET-1", product.SKU)
}

func TestServiceRunDuplicateSKUWithinFile(t *testing.T) {
	env := setupImportTest(t, Config{})
	ctx := context.Background()

	path := writeCSVFile(t, "sku,name,description\n"+
		"ABC-1,First Occurrence,\n"+
		"abc-1,Second Occurrence,refined\n")
	job := newProcessingJob(t, env, path, upload.Options{SkipDuplicates: false})

	require.NoError(t, env.service.Run(ctx, job))

	assert.Equal(t, 1, job.CreatedCount)
	assert.Equal(t, 1, job.UpdatedCount)
	assert.Equal(t, 2, job.SuccessCount)

	count, err := env.products.Count(ctx, shared.NewFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	product, err := env.products.FindBySKULower(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, "Second Occurrence", product.Name)
}

func TestServiceRunDuplicateSKUWithinFileSkipped(t *testing.T) {
	env := setupImportTest(t, Config{})
	ctx := context.Background()

	path := writeCSVFile(t, "sku,name,description\n"+
		"ABC-1,First Occurrence,\n"+
		"ABC-1,Second Occurrence,\n")
	job := newProcessingJob(t, env, path, upload.Options{SkipDuplicates: true})

	require.NoError(t, env.service.Run(ctx, job))

	assert.Equal(t, 1, job.CreatedCount)
	assert.Equal(t, 1, job.SkippedCount)
	assert.Equal(t, 1, job.SuccessCount)

	product, err := env.products.FindBySKULower(ctx, "abc-1")
	require.NoError(t, err)
	assert.Equal(t, "First Occurrence", product.Name)
}

func TestServiceRunRecordsRowErrors(t *testing.T) {
	env := setupImportTest(t, Config{})
	ctx := context.Background()

	path := writeCSVFile(t, "sku,name,description\n"+
		"WIDGET-1,Widget One,\n"+
		",Missing SKU,\n"+
		"WIDGET-3,   ,\n"+
		"WIDGET-4,Widget Four,\n")
	job := newProcessingJob(t, env, path, upload.DefaultOptions())

	require.NoError(t, env.service.Run(ctx, job))

	assert.Equal(t, 4, job.TotalRows)
	assert.Equal(t, 4, job.ProcessedRows)
	assert.Equal(t, 2, job.CreatedCount)
	assert.Equal(t, 2, job.SuccessCount)
	assert.Equal(t, 2, job.ErrorCount)
	// A row that fails validation is both an error and a skip
	assert.Equal(t, 2, job.SkippedCount)

	details, err := job.DecodeErrors()
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, 2, details[0].Row)
	assert.Equal(t, 3, details[1].Row)

	// The bad rows do not block the good ones
	count, err := env.products.Count(ctx, shared.NewFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestServiceRunAllRowsFailStillCompletes(t *testing.T) {
	env := setupImportTest(t, Config{})
	ctx := context.Background()

	path := writeCSVFile(t, "sku,name,description\n"+
		",No SKU Here,\n"+
		",Another Bad Row,\n")
	job := newProcessingJob(t, env, path, upload.DefaultOptions())

	require.NoError(t, env.service.Run(ctx, job))

	assert.Equal(t, 2, job.ProcessedRows)
	assert.Equal(t, 2, job.ErrorCount)
	assert.Equal(t, 2, job.SkippedCount)
	assert.Equal(t, 0, job.SuccessCount)
}

func TestServiceRunChunksAndPersistsCounters(t *testing.T) {
	env := setupImportTest(t, Config{ChunkSize: 2})
	ctx := context.Background()

	path := writeCSVFile(t, "sku,name,description\n"+
		"SKU-1,Name One,\n"+
		"SKU-2,Name Two,\n"+
		"SKU-3,Name Three,\n"+
		"SKU-4,Name Four,\n"+
		"SKU-5,Name Five,\n")
	job := newProcessingJob(t, env, path, upload.DefaultOptions())

	require.NoError(t, env.service.Run(ctx, job))

	assert.Equal(t, 5, job.CreatedCount)
	assert.Equal(t, 5, job.ProcessedRows)

	stored, err := env.jobs.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.TotalRows)
	assert.Equal(t, 5, stored.ProcessedRows)
	assert.Equal(t, 5, stored.CreatedCount)

	snapshot, err := env.progress.Get(ctx, job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 100, snapshot.ProgressPercentage)
	assert.Equal(t, 5, snapshot.ProcessedRows)
}

func TestServiceRunMissingFileFails(t *testing.T) {
	env := setupImportTest(t, Config{})

	job := newProcessingJob(t, env, filepath.Join(t.TempDir(), "gone.csv"), upload.DefaultOptions())

	err := env.service.Run(context.Background(), job)
	require.Error(t, err)
}
