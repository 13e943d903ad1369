package handler

import (
	"encoding/json"
	"time"

	"github.com/catalogd/backend/internal/domain/webhook"
)

// WebhookResponse represents a webhook subscription in API responses.
// The signing secret is only included on creation and rotation.
type WebhookResponse struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	URL                string     `json:"url"`
	EventType          string     `json:"event_type"`
	Secret             string     `json:"secret,omitempty"`
	Description        string     `json:"description"`
	IsActive           bool       `json:"is_active"`
	TotalTriggers      int        `json:"total_triggers"`
	SuccessfulTriggers int        `json:"successful_triggers"`
	FailedTriggers     int        `json:"failed_triggers"`
	SuccessRate        float64    `json:"success_rate"`
	LastTriggeredAt    *time.Time `json:"last_triggered_at,omitempty"`
	LastSuccessAt      *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt      *time.Time `json:"last_failure_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toWebhookResponse(wh *webhook.Webhook, includeSecret bool) WebhookResponse {
	resp := WebhookResponse{
		ID:                 wh.ID.String(),
		Name:               wh.Name,
		URL:                wh.URL,
		EventType:          string(wh.EventType),
		Description:        wh.Description,
		IsActive:           wh.IsActive,
		TotalTriggers:      wh.TotalTriggers,
		SuccessfulTriggers: wh.SuccessfulTriggers,
		FailedTriggers:     wh.FailedTriggers,
		SuccessRate:        wh.SuccessRate(),
		LastTriggeredAt:    wh.LastTriggeredAt,
		LastSuccessAt:      wh.LastSuccessAt,
		LastFailureAt:      wh.LastFailureAt,
		CreatedAt:          wh.CreatedAt,
		UpdatedAt:          wh.UpdatedAt,
	}
	if includeSecret {
		resp.Secret = wh.Secret
	}
	return resp
}

func toWebhookResponses(webhooks []*webhook.Webhook) []WebhookResponse {
	out := make([]WebhookResponse, 0, len(webhooks))
	for _, wh := range webhooks {
		out = append(out, toWebhookResponse(wh, false))
	}
	return out
}

// WebhookLogResponse represents a delivery log entry in API responses
type WebhookLogResponse struct {
	ID             string         `json:"id"`
	WebhookID      string         `json:"webhook_id"`
	EventType      string         `json:"event_type"`
	Payload        map[string]any `json:"payload"`
	StatusCode     int            `json:"status_code"`
	ResponseBody   string         `json:"response_body"`
	ResponseTimeMs int64          `json:"response_time_ms"`
	Error          string         `json:"error,omitempty"`
	Success        bool           `json:"success"`
	RetryCount     int            `json:"retry_count"`
	CreatedAt      time.Time      `json:"created_at"`
}

func toWebhookLogResponse(entry *webhook.Log) WebhookLogResponse {
	payload := map[string]any{}
	if entry.Payload != "" {
		_ = json.Unmarshal([]byte(entry.Payload), &payload)
	}
	return WebhookLogResponse{
		ID:             entry.ID.String(),
		WebhookID:      entry.WebhookID.String(),
		EventType:      string(entry.EventType),
		Payload:        payload,
		StatusCode:     entry.StatusCode,
		ResponseBody:   entry.ResponseBody,
		ResponseTimeMs: entry.ResponseTimeMs,
		Error:          entry.Error,
		Success:        entry.Success,
		RetryCount:     entry.RetryCount,
		CreatedAt:      entry.CreatedAt,
	}
}

func toWebhookLogResponses(entries []*webhook.Log) []WebhookLogResponse {
	out := make([]WebhookLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toWebhookLogResponse(entry))
	}
	return out
}
