package catalog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction enumerates the recorded product change kinds
type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionUpdate     AuditAction = "update"
	AuditActionDelete     AuditAction = "delete"
	AuditActionBulkDelete AuditAction = "bulk_delete"
	AuditActionImport     AuditAction = "import"
)

// IsValid checks if the action is a known one
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdate, AuditActionDelete,
		AuditActionBulkDelete, AuditActionImport:
		return true
	}
	return false
}

// AuditLog records one change to the product table. Entries are
// append-only and never mutated after creation.
type AuditLog struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey"`
	ProductSKU string      `gorm:"type:varchar(255);not null;index"`
	Action     AuditAction `gorm:"type:varchar(20);not null;index"`
	Changes    string      `gorm:"type:jsonb;not null;default:'{}'"`
	User       string      `gorm:"type:varchar(255);not null;default:'system'"`
	Timestamp  time.Time   `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new audit entry. changes must be JSON-serializable.
func NewAuditLog(productSKU string, action AuditAction, changes map[string]any, user string) (*AuditLog, error) {
	if user == "" {
		user = "system"
	}
	if changes == nil {
		changes = map[string]any{}
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return nil, err
	}
	return &AuditLog{
		ID:         uuid.New(),
		ProductSKU: productSKU,
		Action:     action,
		Changes:    string(data),
		User:       user,
		Timestamp:  time.Now(),
	}, nil
}

// DecodeChanges unmarshals the stored change document
func (a *AuditLog) DecodeChanges() (map[string]any, error) {
	out := make(map[string]any)
	if a.Changes == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(a.Changes), &out); err != nil {
		return nil, err
	}
	return out, nil
}
