package uploadapp

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/upload"
	"github.com/catalogd/backend/internal/domain/webhook"
)

// TaskTypeCleanup is the queue task type for retention cleanup runs
const TaskTypeCleanup = "upload.cleanup"

// CleanupConfig holds retention settings
type CleanupConfig struct {
	FileRetention time.Duration
	LogRetention  time.Duration
}

// Cleaner removes stored CSV files for finished jobs past the file
// retention window and prunes old webhook delivery logs
type Cleaner struct {
	jobs        upload.JobRepository
	webhookLogs webhook.LogRepository
	logger      *zap.Logger
	cfg         CleanupConfig
}

// NewCleaner creates a cleanup handler
func NewCleaner(jobs upload.JobRepository, webhookLogs webhook.LogRepository, logger *zap.Logger, cfg CleanupConfig) *Cleaner {
	if cfg.FileRetention <= 0 {
		cfg.FileRetention = 24 * time.Hour
	}
	if cfg.LogRetention <= 0 {
		cfg.LogRetention = 30 * 24 * time.Hour
	}
	return &Cleaner{
		jobs:        jobs,
		webhookLogs: webhookLogs,
		logger:      logger.Named("cleanup"),
		cfg:         cfg,
	}
}

// Register installs the handler on the task queue
func (c *Cleaner) Register(queue shared.TaskQueue) {
	queue.Register(TaskTypeCleanup, c.HandleCleanup)
}

// HandleCleanup runs one retention pass
func (c *Cleaner) HandleCleanup(ctx context.Context, taskID string, payload map[string]any) error {
	removed, err := c.cleanupFiles(ctx)
	if err != nil {
		return err
	}

	pruned, err := c.webhookLogs.DeleteOlderThan(ctx, time.Now().Add(-c.cfg.LogRetention))
	if err != nil {
		return err
	}

	if removed > 0 || pruned > 0 {
		c.logger.Info("Cleanup pass finished",
			zap.Int("files_removed", removed),
			zap.Int64("webhook_logs_pruned", pruned),
		)
	}
	return nil
}

func (c *Cleaner) cleanupFiles(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-c.cfg.FileRetention)
	jobs, err := c.jobs.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, job := range jobs {
		if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("Failed to remove expired upload file",
				zap.String("upload_id", job.ID.String()),
				zap.String("path", job.FilePath),
				zap.Error(err),
			)
			continue
		}
		if err := c.jobs.ClearFilePath(ctx, job.ID); err != nil {
			c.logger.Error("Failed to clear file path",
				zap.String("upload_id", job.ID.String()),
				zap.Error(err),
			)
			continue
		}
		removed++
	}
	return removed, nil
}
