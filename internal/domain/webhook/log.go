package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxResponseBodyLength caps how much of the endpoint response is kept
const MaxResponseBodyLength = 1000

// Log is an immutable record of one delivery attempt. One row is
// written per HTTP attempt, including each retry.
type Log struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	WebhookID uuid.UUID `gorm:"type:uuid;not null;index"`
	EventType EventType `gorm:"type:varchar(50);not null"`
	// Payload is the exact JSON body that was sent
	Payload        string `gorm:"type:jsonb;not null"`
	StatusCode     int    `gorm:"not null;default:0"`
	ResponseBody   string `gorm:"type:text"`
	ResponseTimeMs int64  `gorm:"not null;default:0"`
	Error          string `gorm:"type:text"`
	Success        bool   `gorm:"not null;default:false"`
	RetryCount     int    `gorm:"not null;default:0"`
	CreatedAt      time.Time
}

// TableName returns the table name for GORM
func (Log) TableName() string {
	return "webhook_logs"
}

// NewLog records one delivery attempt. The response body is truncated
// to MaxResponseBodyLength.
func NewLog(webhookID uuid.UUID, eventType EventType, payload []byte, statusCode int, responseBody string, responseTime time.Duration, deliveryErr error, retryCount int) *Log {
	if len(responseBody) > MaxResponseBodyLength {
		responseBody = responseBody[:MaxResponseBodyLength]
	}
	errMsg := ""
	if deliveryErr != nil {
		errMsg = deliveryErr.Error()
	}
	return &Log{
		ID:             uuid.New(),
		WebhookID:      webhookID,
		EventType:      eventType,
		Payload:        string(payload),
		StatusCode:     statusCode,
		ResponseBody:   responseBody,
		ResponseTimeMs: responseTime.Milliseconds(),
		Error:          errMsg,
		Success:        deliveryErr == nil && statusCode >= 200 && statusCode < 300,
		RetryCount:     retryCount,
		CreatedAt:      time.Now(),
	}
}

// DecodePayload unmarshals the delivered JSON body
func (l *Log) DecodePayload() (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(l.Payload), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook payload: %w", err)
	}
	return payload, nil
}
