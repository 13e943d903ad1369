package webhookapp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/catalog"
	"github.com/catalogd/backend/internal/domain/shared"
	"github.com/catalogd/backend/internal/domain/webhook"
)

type enqueuedTask struct {
	taskType string
	payload  map[string]any
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []enqueuedTask
}

func (q *fakeQueue) Enqueue(_ context.Context, taskType string, payload map[string]any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, enqueuedTask{taskType: taskType, payload: payload})
	return uuid.New().String(), nil
}

func (q *fakeQueue) Register(string, shared.TaskHandler) {}

func TestRouterFansOutToSubscribers(t *testing.T) {
	sub1, err := webhook.NewWebhook("One", "https://example.com/1", webhook.EventProductCreated, "")
	require.NoError(t, err)
	sub2, err := webhook.NewWebhook("Two", "https://example.com/2", webhook.EventProductCreated, "")
	require.NoError(t, err)
	otherType, err := webhook.NewWebhook("Other", "https://example.com/3", webhook.EventProductDeleted, "")
	require.NoError(t, err)
	inactive, err := webhook.NewWebhook("Off", "https://example.com/4", webhook.EventProductCreated, "")
	require.NoError(t, err)
	inactive.IsActive = false

	queue := &fakeQueue{}
	router := NewRouter(newFakeWebhookRepo(sub1, sub2, otherType, inactive), queue, zap.NewNop())

	product, err := catalog.NewProduct("A-1", "Widget", "")
	require.NoError(t, err)
	event := catalog.NewProductCreatedEvent(product)

	require.NoError(t, router.Publish(context.Background(), event))

	require.Len(t, queue.tasks, 2)
	delivered := map[string]bool{}
	for _, task := range queue.tasks {
		assert.Equal(t, TaskTypeSend, task.taskType)
		assert.Equal(t, "product.created", task.payload["event_type"])
		delivered[task.payload["webhook_id"].(string)] = true
	}
	assert.True(t, delivered[sub1.ID.String()])
	assert.True(t, delivered[sub2.ID.String()])
}

type internalEvent struct {
	shared.BaseDomainEvent
}

func (e *internalEvent) Payload() map[string]any { return map[string]any{} }

func TestRouterIgnoresUnmappedEventTypes(t *testing.T) {
	queue := &fakeQueue{}
	router := NewRouter(newFakeWebhookRepo(), queue, zap.NewNop())

	event := &internalEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("internal.counter_reset", "Counter", uuid.New()),
	}
	require.NoError(t, router.Publish(context.Background(), event))
	assert.Empty(t, queue.tasks)
}

func TestBuildPayload(t *testing.T) {
	product, err := catalog.NewProduct("A-1", "Widget", "desc")
	require.NoError(t, err)
	event := catalog.NewProductCreatedEvent(product)

	body, err := BuildPayload(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "product.created", decoded["event"])
	assert.Equal(t, event.EventID().String(), decoded["event_id"])
	assert.NotEmpty(t, decoded["timestamp"])

	data, ok := decoded["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A-1", data["sku"])
}
