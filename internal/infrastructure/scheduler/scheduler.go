package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/shared"
)

// IntervalJob enqueues one task type on a fixed interval
type IntervalJob struct {
	TaskType string
	Interval time.Duration
	Payload  map[string]any
}

// Scheduler periodically enqueues recurring maintenance tasks onto the
// task queue so they run through the same worker pool as everything
// else
type Scheduler struct {
	queue  shared.TaskQueue
	logger *zap.Logger
	jobs   []IntervalJob

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a scheduler
func New(queue shared.TaskQueue, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		queue:  queue,
		logger: logger.Named("scheduler"),
		stopCh: make(chan struct{}),
	}
}

// AddJob registers a recurring job. Must be called before Start.
func (s *Scheduler) AddJob(job IntervalJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

// Start launches one ticker goroutine per registered job
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.run(job)
	}
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop signals all tickers to finish and waits for them
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) run(job IntervalJob) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			taskID, err := s.queue.Enqueue(context.Background(), job.TaskType, job.Payload)
			if err != nil {
				s.logger.Error("Failed to enqueue scheduled task",
					zap.String("task_type", job.TaskType),
					zap.Error(err),
				)
				continue
			}
			s.logger.Debug("Scheduled task enqueued",
				zap.String("task_type", job.TaskType),
				zap.String("task_id", taskID),
			)
		}
	}
}
