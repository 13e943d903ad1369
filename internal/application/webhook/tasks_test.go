package webhookapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogd/backend/internal/domain/webhook"
)

func TestHandleSendDelivers(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := newTestWebhook(t, srv.URL)
	repo := newFakeWebhookRepo(wh)
	logs := &fakeLogRepo{}
	handler := NewTaskHandler(newTestDispatcher(repo, logs), repo, zap.NewNop())

	err := handler.HandleSend(context.Background(), "task-1", map[string]any{
		"webhook_id": wh.ID.String(),
		"event_type": string(webhook.EventProductCreated),
		"body":       `{"event":"product.created"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, wh.SuccessfulTriggers)
}

func TestHandleSendSwallowsExhaustedDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := newTestWebhook(t, srv.URL)
	repo := newFakeWebhookRepo(wh)
	logs := &fakeLogRepo{}
	handler := NewTaskHandler(newTestDispatcher(repo, logs), repo, zap.NewNop())

	// Retries are exhausted inside the dispatcher; the task must not
	// fail and trigger a second retry loop at the queue level
	err := handler.HandleSend(context.Background(), "task-1", map[string]any{
		"webhook_id": wh.ID.String(),
		"event_type": string(webhook.EventProductCreated),
		"body":       `{"event":"product.created"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, wh.FailedTriggers)
}

func TestHandleSendDropsDeletedAndInactive(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	inactive := newTestWebhook(t, srv.URL)
	require.NoError(t, inactive.Update(inactive.Name, inactive.URL, inactive.EventType, inactive.Description, false))
	repo := newFakeWebhookRepo(inactive)
	handler := NewTaskHandler(newTestDispatcher(repo, &fakeLogRepo{}), repo, zap.NewNop())

	payload := map[string]any{
		"webhook_id": inactive.ID.String(),
		"event_type": string(webhook.EventProductCreated),
		"body":       `{"event":"product.created"}`,
	}
	require.NoError(t, handler.HandleSend(context.Background(), "task-1", payload))

	payload["webhook_id"] = "00000000-0000-0000-0000-000000000001"
	require.NoError(t, handler.HandleSend(context.Background(), "task-2", payload))

	assert.Zero(t, hits.Load())
}

func TestHandleSendRejectsBadPayload(t *testing.T) {
	repo := newFakeWebhookRepo()
	handler := NewTaskHandler(newTestDispatcher(repo, &fakeLogRepo{}), repo, zap.NewNop())

	err := handler.HandleSend(context.Background(), "task-1", map[string]any{})
	require.Error(t, err)

	err = handler.HandleSend(context.Background(), "task-2", map[string]any{
		"webhook_id": "not-a-uuid",
		"event_type": "product.created",
		"body":       "{}",
	})
	require.Error(t, err)
}
