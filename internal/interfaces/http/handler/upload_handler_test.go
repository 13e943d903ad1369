package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	uploadapp "github.com/catalogd/backend/internal/application/upload"
	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/upload"
	"github.com/catalogd/backend/internal/infrastructure/persistence"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []string
}

func (q *recordingQueue) Enqueue(_ context.Context, taskType string, _ map[string]any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, taskType)
	return uuid.NewString(), nil
}

func (q *recordingQueue) Register(string, shared.TaskHandler) {}

type memSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]upload.ProgressSnapshot
}

func newMemSnapshotStore() *memSnapshotStore {
	return &memSnapshotStore{snapshots: make(map[string]upload.ProgressSnapshot)}
}

func (s *memSnapshotStore) Set(_ context.Context, jobID string, snapshot upload.ProgressSnapshot, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[jobID] = snapshot
	return nil
}

func (s *memSnapshotStore) Get(_ context.Context, jobID string) (upload.ProgressSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.snapshots[jobID]
	if !ok {
		return upload.ProgressSnapshot{}, shared.ErrNotFound
	}
	return snapshot, nil
}

func (s *memSnapshotStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, jobID)
	return nil
}

type uploadRouterEnv struct {
	engine  *gin.Engine
	queue   *recordingQueue
	service *uploadapp.Service
	jobs    *persistence.GormUploadJobRepository
}

func setupUploadRouter(t *testing.T) *uploadRouterEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&upload.Job{}))

	jobs := persistence.NewGormUploadJobRepository(db)
	queue := &recordingQueue{}
	service := uploadapp.NewService(jobs, newMemSnapshotStore(), queue, zap.NewNop(),
		uploadapp.Config{UploadDir: t.TempDir()})

	engine := gin.New()
	NewUploadHandler(service, zap.NewNop()).RegisterRoutes(engine.Group("/api/v1"))
	return &uploadRouterEnv{engine: engine, queue: queue, service: service, jobs: jobs}
}

func postCSV(t *testing.T, engine *gin.Engine, fileName, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestUploadHandlerCreate(t *testing.T) {
	env := setupUploadRouter(t)

	w := postCSV(t, env.engine, "products.csv", "sku,name\nWIDGET-1,Widget One\n", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	data := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.Equal(t, "products.csv", data["file_name"])
	assert.Equal(t, "pending", data["status"])
	assert.Len(t, env.queue.tasks, 1)
}

func TestUploadHandlerCreateWithOptions(t *testing.T) {
	env := setupUploadRouter(t)

	w := postCSV(t, env.engine, "products.csv", "sku,name\nA,B\n", map[string]string{
		"options": `{"skip_duplicates":false,"deactivate_missing":true}`,
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]any)

	respOpts := data["options"].(map[string]any)
	assert.Equal(t, false, respOpts["skip_duplicates"])
	assert.Equal(t, true, respOpts["deactivate_missing"])

	id, err := uuid.Parse(data["id"].(string))
	require.NoError(t, err)
	job, err := env.service.Get(context.Background(), id)
	require.NoError(t, err)
	opts, err := job.Options()
	require.NoError(t, err)
	assert.False(t, opts.SkipDuplicates)
	assert.True(t, opts.DeactivateMissing)
}

func TestUploadHandlerCreateRejectsNonCSV(t *testing.T) {
	env := setupUploadRouter(t)

	w := postCSV(t, env.engine, "products.pdf", "not a csv", nil)
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Empty(t, env.queue.tasks)
}

func TestUploadHandlerCreateRequiresFile(t *testing.T) {
	env := setupUploadRouter(t)

	w := doJSON(t, env.engine, http.MethodPost, "/api/v1/uploads", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadHandlerGetAndList(t *testing.T) {
	env := setupUploadRouter(t)

	w := postCSV(t, env.engine, "products.csv", "sku,name\nA,B\n", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	created := decodeEnvelope(t, w)["data"].(map[string]any)

	t.Run("get", func(t *testing.T) {
		w := doJSON(t, env.engine, http.MethodGet, "/api/v1/uploads/"+created["id"].(string), nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeEnvelope(t, w)["data"].(map[string]any)
		assert.Equal(t, "products.csv", data["file_name"])
	})

	t.Run("list with status filter", func(t *testing.T) {
		w := doJSON(t, env.engine, http.MethodGet, "/api/v1/uploads?status=pending", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decodeEnvelope(t, w)["data"], 1)

		w = doJSON(t, env.engine, http.MethodGet, "/api/v1/uploads?status=completed", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decodeEnvelope(t, w)["data"])
	})

	t.Run("unknown id", func(t *testing.T) {
		w := doJSON(t, env.engine, http.MethodGet, "/api/v1/uploads/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUploadHandlerProgress(t *testing.T) {
	env := setupUploadRouter(t)

	job, err := env.service.Accept(context.Background(), "products.csv",
		bytes.NewReader([]byte("sku,name\nA,B\n")), upload.DefaultOptions())
	require.NoError(t, err)

	w := doJSON(t, env.engine, http.MethodGet, "/api/v1/uploads/"+job.ID.String()+"/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.Equal(t, "pending", data["status"])
	assert.EqualValues(t, 0, data["progress_percentage"])

	w = doJSON(t, env.engine, http.MethodGet, "/api/v1/uploads/"+uuid.NewString()+"/progress", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadHandlerStreamProgress(t *testing.T) {
	env := setupUploadRouter(t)
	ctx := context.Background()

	job, err := upload.NewJob("products.csv", "/tmp/products.csv", upload.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, job.MarkProcessing())
	require.NoError(t, job.MarkCompleted())
	require.NoError(t, env.jobs.Create(ctx, job))

	// A terminal job closes the stream after one snapshot
	w := doJSON(t, env.engine, http.MethodGet, "/api/v1/uploads/"+job.ID.String()+"/progress/stream", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event: progress")
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	t.Run("unknown id", func(t *testing.T) {
		w := doJSON(t, env.engine, http.MethodGet, "/api/v1/uploads/"+uuid.NewString()+"/progress/stream", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
