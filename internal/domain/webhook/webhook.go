package webhook

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/catalogd/backend/internal/domain/shared"
)

// SecretByteLength is the entropy of a generated signing secret
const SecretByteLength = 32

// Webhook is a subscriber endpoint for one event type. Its trigger
// counters satisfy successful + failed == total at all times.
type Webhook struct {
	shared.BaseAggregateRoot
	Name        string    `gorm:"type:varchar(255);not null"`
	URL         string    `gorm:"type:varchar(500);not null"`
	EventType   EventType `gorm:"type:varchar(50);not null;index"`
	Secret      string    `gorm:"type:varchar(255);not null"`
	Description string    `gorm:"type:text"`
	IsActive    bool      `gorm:"not null;default:true"`

	TotalTriggers      int `gorm:"not null;default:0"`
	SuccessfulTriggers int `gorm:"not null;default:0"`
	FailedTriggers     int `gorm:"not null;default:0"`

	LastTriggeredAt *time.Time
	LastSuccessAt   *time.Time
	LastFailureAt   *time.Time
}

// TableName returns the table name for GORM
func (Webhook) TableName() string {
	return "webhooks"
}

// NewWebhook creates a webhook subscription with a generated signing
// secret
func NewWebhook(name, rawURL string, eventType EventType, description string) (*Webhook, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_WEBHOOK_NAME", "Webhook name cannot be empty")
	}
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if !eventType.IsValid() {
		return nil, shared.NewDomainError("INVALID_EVENT_TYPE", fmt.Sprintf("Unknown event type: %s", eventType))
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}

	return &Webhook{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		URL:               rawURL,
		EventType:         eventType,
		Secret:            secret,
		Description:       description,
		IsActive:          true,
	}, nil
}

// Update changes the mutable webhook fields. The secret is never
// changed here; use RotateSecret.
func (w *Webhook) Update(name, rawURL string, eventType EventType, description string, isActive bool) error {
	if name == "" {
		return shared.NewDomainError("INVALID_WEBHOOK_NAME", "Webhook name cannot be empty")
	}
	if err := validateURL(rawURL); err != nil {
		return err
	}
	if !eventType.IsValid() {
		return shared.NewDomainError("INVALID_EVENT_TYPE", fmt.Sprintf("Unknown event type: %s", eventType))
	}
	w.Name = name
	w.URL = rawURL
	w.EventType = eventType
	w.Description = description
	w.IsActive = isActive
	w.UpdatedAt = time.Now()
	return nil
}

// RotateSecret replaces the signing secret with a fresh one
func (w *Webhook) RotateSecret() error {
	secret, err := generateSecret()
	if err != nil {
		return err
	}
	w.Secret = secret
	w.UpdatedAt = time.Now()
	return nil
}

// RecordTrigger updates the delivery statistics after one delivery
// attempt sequence
func (w *Webhook) RecordTrigger(success bool) {
	now := time.Now()
	w.TotalTriggers++
	w.LastTriggeredAt = &now
	if success {
		w.SuccessfulTriggers++
		w.LastSuccessAt = &now
	} else {
		w.FailedTriggers++
		w.LastFailureAt = &now
	}
	w.UpdatedAt = now
}

// SuccessRate returns the percentage of successful triggers, 0 when
// nothing has been delivered yet
func (w *Webhook) SuccessRate() float64 {
	if w.TotalTriggers == 0 {
		return 0
	}
	return float64(w.SuccessfulTriggers) / float64(w.TotalTriggers) * 100
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return shared.NewDomainError("INVALID_WEBHOOK_URL", "Webhook URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return shared.NewDomainError("INVALID_WEBHOOK_URL", "Webhook URL must be a valid http or https URL")
	}
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, SecretByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
