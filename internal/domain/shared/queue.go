package shared

import "context"

// TaskHandler processes one dequeued task. A returned error marks the
// attempt as failed; the queue retries up to the task's retry limit.
type TaskHandler func(ctx context.Context, taskID string, payload map[string]any) error

// TaskQueue abstracts the external broker used for fire-and-forget work.
// Delivery is at-least-once: handlers may observe the same logical task
// more than once and must tolerate duplicates.
type TaskQueue interface {
	// Enqueue submits a task and returns its queue-assigned ID.
	Enqueue(ctx context.Context, taskType string, payload map[string]any) (string, error)
	// Register binds a handler to a task type. Must be called before Start.
	Register(taskType string, handler TaskHandler)
}
