package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/shared"
)

const (
	taskKeyPrefix  = "task:"
	pendingListKey = "task_queue"
	workingListKey = "task_processing"
	retryZSetKey   = "task_retry"

	taskTTL = 24 * time.Hour
)

// TaskStatus is the lifecycle state of a queued task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is the durable record of one queued unit of work
type Task struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Status     TaskStatus     `json:"status"`
	Payload    map[string]any `json:"payload"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
	ErrorMsg   string         `json:"error_msg,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
}

// Config holds task queue settings
type Config struct {
	Workers     int
	PollTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	StuckSweep  time.Duration
	StuckAge    time.Duration
}

// RedisTaskQueue implements shared.TaskQueue on Redis lists. Enqueue
// pushes the task id onto a pending list; workers move ids to a
// processing list with BRPopLPush so a crash never loses a task, and a
// sweeper requeues anything stuck in processing for too long. Failed
// attempts park in a retry sorted set until their backoff elapses.
type RedisTaskQueue struct {
	client *redis.Client
	logger *zap.Logger
	cfg    Config

	mu       sync.Mutex
	handlers map[string]shared.TaskHandler
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewRedisTaskQueue creates a task queue with an existing Redis client
func NewRedisTaskQueue(client *redis.Client, logger *zap.Logger, cfg Config) *RedisTaskQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}
	if cfg.StuckSweep <= 0 {
		cfg.StuckSweep = time.Minute
	}
	if cfg.StuckAge <= 0 {
		cfg.StuckAge = 30 * time.Minute
	}
	return &RedisTaskQueue{
		client:   client,
		logger:   logger.Named("taskqueue"),
		cfg:      cfg,
		handlers: make(map[string]shared.TaskHandler),
		stopCh:   make(chan struct{}),
	}
}

// Register installs the handler for a task type. Must be called before
// Start; a task with no handler fails permanently.
func (q *RedisTaskQueue) Register(taskType string, handler shared.TaskHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = handler
}

// Enqueue stores the task record and pushes its id onto the pending list
func (q *RedisTaskQueue) Enqueue(ctx context.Context, taskType string, payload map[string]any) (string, error) {
	now := time.Now()
	task := &Task{
		ID:         uuid.New().String(),
		Type:       taskType,
		Status:     TaskStatusPending,
		Payload:    payload,
		MaxRetries: q.cfg.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL)
	pipe.LPush(ctx, pendingListKey, task.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Info("Task enqueued",
		zap.String("task_id", task.ID),
		zap.String("task_type", taskType),
	)
	return task.ID, nil
}

// Start launches the worker pool and the stuck-task sweeper
func (q *RedisTaskQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true

	q.logger.Info("Starting workers", zap.Int("workers", q.cfg.Workers))
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	q.wg.Add(1)
	go q.stuckSweeper()
}

// Stop signals all workers to finish and waits for them
func (q *RedisTaskQueue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("All workers stopped")
}

// PendingSize returns the number of tasks waiting to be processed
func (q *RedisTaskQueue) PendingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, pendingListKey).Result()
}

// GetTask retrieves a task record by id
func (q *RedisTaskQueue) GetTask(ctx context.Context, taskID string) (*Task, error) {
	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	var task Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

func (q *RedisTaskQueue) worker(id int) {
	defer q.wg.Done()
	q.logger.Debug("Worker started", zap.Int("worker", id))

	ctx := context.Background()
	for {
		select {
		case <-q.stopCh:
			q.logger.Debug("Worker stopping", zap.Int("worker", id))
			return
		default:
			task, err := q.dequeue(ctx)
			if err != nil {
				if !errors.Is(err, redis.Nil) {
					q.logger.Error("Failed to dequeue task", zap.Int("worker", id), zap.Error(err))
					time.Sleep(time.Second)
				}
				continue
			}
			if task != nil {
				q.process(ctx, task)
			}
		}
	}
}

// dequeue atomically moves the next task id from pending to processing
func (q *RedisTaskQueue) dequeue(ctx context.Context) (*Task, error) {
	taskID, err := q.client.BRPopLPush(ctx, pendingListKey, workingListKey, q.cfg.PollTimeout).Result()
	if err != nil {
		return nil, err
	}

	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Result()
	if err != nil {
		// Record missing or expired; drop the stray list entry
		q.client.LRem(ctx, workingListKey, 1, taskID)
		return nil, fmt.Errorf("task data not found for id %s", taskID)
	}

	var task Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		q.client.LRem(ctx, workingListKey, 1, taskID)
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", taskID, err)
	}
	return &task, nil
}

func (q *RedisTaskQueue) process(ctx context.Context, task *Task) {
	now := time.Now()
	task.Status = TaskStatusProcessing
	task.StartedAt = &now
	task.UpdatedAt = now
	q.saveTask(ctx, task)

	q.mu.Lock()
	handler, ok := q.handlers[task.Type]
	q.mu.Unlock()

	var err error
	if !ok {
		err = fmt.Errorf("no handler registered for task type %s", task.Type)
	} else {
		err = handler(ctx, task.ID, task.Payload)
	}

	if err != nil {
		q.logger.Error("Task failed",
			zap.String("task_id", task.ID),
			zap.String("task_type", task.Type),
			zap.Int("retry_count", task.RetryCount),
			zap.Error(err),
		)
		task.ErrorMsg = err.Error()
		task.UpdatedAt = time.Now()

		if ok && task.RetryCount < task.MaxRetries {
			task.RetryCount++
			task.Status = TaskStatusPending
			q.saveTask(ctx, task)
			q.scheduleRetry(ctx, task.ID)
		} else {
			task.Status = TaskStatusFailed
			q.saveTask(ctx, task)
		}
	} else {
		task.Status = TaskStatusCompleted
		task.UpdatedAt = time.Now()
		q.saveTask(ctx, task)
		q.logger.Info("Task completed",
			zap.String("task_id", task.ID),
			zap.String("task_type", task.Type),
		)
	}

	q.client.LRem(ctx, workingListKey, 1, task.ID)
}

// scheduleRetry parks the task id in the retry set, scored by its due
// time. Parking in Redis rather than a process timer means a crash
// during the backoff window cannot strand the task; the sweeper
// promotes it once due.
func (q *RedisTaskQueue) scheduleRetry(ctx context.Context, taskID string) {
	due := float64(time.Now().Add(q.cfg.RetryDelay).UnixMilli())
	if err := q.client.ZAdd(ctx, retryZSetKey, redis.Z{Score: due, Member: taskID}).Err(); err != nil {
		q.logger.Error("Failed to park task for retry, requeueing immediately",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		// Losing the backoff beats losing the task
		if err := q.client.LPush(ctx, pendingListKey, taskID).Err(); err != nil {
			q.logger.Error("Failed to requeue task for retry",
				zap.String("task_id", taskID),
				zap.Error(err),
			)
		}
	}
}

// promoteDueRetries moves retry-set entries whose due time has passed
// back onto the pending list. Push before remove: a crash in between
// re-promotes the task, which at-least-once delivery permits.
func (q *RedisTaskQueue) promoteDueRetries(ctx context.Context) {
	max := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.client.ZRangeByScore(ctx, retryZSetKey, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		q.logger.Error("Failed to list due retries", zap.Error(err))
		return
	}

	for _, id := range ids {
		if err := q.client.LPush(ctx, pendingListKey, id).Err(); err != nil {
			q.logger.Error("Failed to promote retry", zap.String("task_id", id), zap.Error(err))
			continue
		}
		q.client.ZRem(ctx, retryZSetKey, id)
	}
}

// stuckSweeper requeues tasks stuck on the processing list, recovering
// work lost to a crashed worker, and promotes due retries on a faster
// cadence
func (q *RedisTaskQueue) stuckSweeper() {
	defer q.wg.Done()

	stuckTicker := time.NewTicker(q.cfg.StuckSweep)
	defer stuckTicker.Stop()
	retryTicker := time.NewTicker(q.cfg.PollTimeout)
	defer retryTicker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-q.stopCh:
			return
		case <-stuckTicker.C:
			q.sweepOnce(ctx)
		case <-retryTicker.C:
			q.promoteDueRetries(ctx)
		}
	}
}

func (q *RedisTaskQueue) sweepOnce(ctx context.Context) {
	ids, err := q.client.LRange(ctx, workingListKey, 0, -1).Result()
	if err != nil {
		q.logger.Error("Sweeper failed to list processing tasks", zap.Error(err))
		return
	}

	now := time.Now()
	for _, id := range ids {
		data, err := q.client.Get(ctx, taskKeyPrefix+id).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				q.logger.Error("Sweeper failed to read task", zap.String("task_id", id), zap.Error(err))
			}
			q.client.LRem(ctx, workingListKey, 1, id)
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(data), &task); err != nil {
			q.client.LRem(ctx, workingListKey, 1, id)
			continue
		}
		if task.Status != TaskStatusProcessing {
			q.client.LRem(ctx, workingListKey, 1, id)
			continue
		}

		started := task.StartedAt
		if started == nil || started.IsZero() {
			started = &task.UpdatedAt
		}
		if now.Sub(*started) > q.cfg.StuckAge {
			q.logger.Warn("Recovering stuck task",
				zap.String("task_id", task.ID),
				zap.String("task_type", task.Type),
				zap.Duration("age", now.Sub(*started)),
			)
			task.Status = TaskStatusPending
			task.UpdatedAt = now
			q.saveTask(ctx, &task)
			q.client.LRem(ctx, workingListKey, 1, id)
			q.client.RPush(ctx, pendingListKey, id)
		}
	}
}

func (q *RedisTaskQueue) saveTask(ctx context.Context, task *Task) {
	data, err := json.Marshal(task)
	if err != nil {
		q.logger.Error("Failed to marshal task", zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	if err := q.client.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL).Err(); err != nil {
		q.logger.Error("Failed to save task", zap.String("task_id", task.ID), zap.Error(err))
	}
}

// Ensure RedisTaskQueue implements TaskQueue
var _ shared.TaskQueue = (*RedisTaskQueue)(nil)
