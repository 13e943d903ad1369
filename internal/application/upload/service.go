package uploadapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/application/importer"
	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/upload"
)

// Config holds upload handling settings
type Config struct {
	UploadDir     string
	MaxUploadSize int64
	ProgressTTL   time.Duration
}

// Service accepts CSV uploads, tracks their jobs and serves progress.
// The heavy lifting happens on the task queue; Accept returns as soon
// as the file is stored and the job enqueued.
type Service struct {
	jobs     upload.JobRepository
	progress upload.ProgressStore
	queue    shared.TaskQueue
	logger   *zap.Logger
	cfg      Config
}

// NewService creates an upload service
func NewService(jobs upload.JobRepository, progress upload.ProgressStore, queue shared.TaskQueue, logger *zap.Logger, cfg Config) *Service {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 50 << 20
	}
	if cfg.ProgressTTL <= 0 {
		cfg.ProgressTTL = time.Hour
	}
	return &Service{
		jobs:     jobs,
		progress: progress,
		queue:    queue,
		logger:   logger.Named("upload_service"),
		cfg:      cfg,
	}
}

// Accept stores the uploaded CSV, creates the job ledger entry and
// enqueues the import task
func (s *Service) Accept(ctx context.Context, fileName string, content io.Reader, opts upload.Options) (*upload.Job, error) {
	if !strings.HasSuffix(strings.ToLower(fileName), ".csv") {
		return nil, shared.NewDomainError("INVALID_FILE_TYPE", "Only CSV files are accepted")
	}

	filePath, err := s.store(fileName, content)
	if err != nil {
		return nil, err
	}

	job, err := upload.NewJob(fileName, filePath, opts)
	if err != nil {
		s.removeFile(filePath)
		return nil, err
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		s.removeFile(filePath)
		return nil, err
	}

	// Seed the cache so the first poll after upload hits immediately
	if err := s.progress.Set(ctx, job.ID.String(), job.Snapshot(), s.cfg.ProgressTTL); err != nil {
		s.logger.Warn("Failed to seed progress cache", zap.String("upload_id", job.ID.String()), zap.Error(err))
	}

	taskID, err := s.queue.Enqueue(ctx, importer.TaskTypeProcessCSV, map[string]any{
		"upload_id": job.ID.String(),
	})
	if err != nil {
		// The job stays pending; a requeue or manual retry can pick
		// it up later
		s.logger.Error("Failed to enqueue import task",
			zap.String("upload_id", job.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to enqueue import task: %w", err)
	}
	job.TaskID = taskID
	if err := s.jobs.SaveTaskID(ctx, job.ID, taskID); err != nil {
		s.logger.Error("Failed to record task id", zap.String("upload_id", job.ID.String()), zap.Error(err))
	}

	s.logger.Info("Upload accepted",
		zap.String("upload_id", job.ID.String()),
		zap.String("file_name", fileName),
		zap.String("task_id", taskID),
	)
	return job, nil
}

// store writes the upload under uploadDir/YYYY/MM/DD with a unique name
func (s *Service) store(fileName string, content io.Reader) (string, error) {
	now := time.Now()
	dir := filepath.Join(s.cfg.UploadDir, now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(dir, uuid.New().String()+"_"+filepath.Base(fileName))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, io.LimitReader(content, s.cfg.MaxUploadSize+1))
	if err != nil {
		s.removeFile(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if written > s.cfg.MaxUploadSize {
		s.removeFile(path)
		return "", shared.NewDomainError("FILE_TOO_LARGE",
			fmt.Sprintf("Upload exceeds the %d byte limit", s.cfg.MaxUploadSize))
	}
	return path, nil
}

// Get returns one upload job
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*upload.Job, error) {
	return s.jobs.FindByID(ctx, id)
}

// List returns upload jobs matching the filter with the total count
func (s *Service) List(ctx context.Context, filter shared.Filter) ([]*upload.Job, int64, error) {
	jobs, err := s.jobs.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.jobs.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// Progress returns the job's progress snapshot, cache first with a
// database fallback
func (s *Service) Progress(ctx context.Context, id uuid.UUID) (upload.ProgressSnapshot, error) {
	snapshot, err := s.progress.Get(ctx, id.String())
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		s.logger.Warn("Progress cache read failed", zap.String("upload_id", id.String()), zap.Error(err))
	}

	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return upload.ProgressSnapshot{}, err
	}
	snapshot = job.Snapshot()

	// Repopulate the cache so the next poll is cheap
	if err := s.progress.Set(ctx, id.String(), snapshot, s.cfg.ProgressTTL); err != nil {
		s.logger.Warn("Progress cache write failed", zap.String("upload_id", id.String()), zap.Error(err))
	}
	return snapshot, nil
}

// StreamProgress emits snapshots roughly once per second until the job
// reaches a terminal state. The terminal snapshot is always the last
// value sent before the channel closes.
func (s *Service) StreamProgress(ctx context.Context, id uuid.UUID, interval time.Duration) (<-chan upload.ProgressSnapshot, error) {
	if interval <= 0 {
		interval = time.Second
	}

	// Validate the job exists before committing to a stream
	first, err := s.Progress(ctx, id)
	if err != nil {
		return nil, err
	}

	ch := make(chan upload.ProgressSnapshot, 1)
	ch <- first

	go func() {
		defer close(ch)
		if first.Status.IsTerminal() {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snapshot, err := s.Progress(ctx, id)
				if err != nil {
					s.logger.Warn("Progress stream read failed",
						zap.String("upload_id", id.String()),
						zap.Error(err),
					)
					return
				}
				select {
				case ch <- snapshot:
				case <-ctx.Done():
					return
				}
				if snapshot.Status.IsTerminal() {
					return
				}
			}
		}
	}()
	return ch, nil
}

func (s *Service) removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove upload file", zap.String("path", path), zap.Error(err))
	}
}
