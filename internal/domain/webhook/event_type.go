package webhook

// EventType identifies a subscribable event. The set is closed: a
// webhook can only subscribe to one of the listed types.
type EventType string

const (
	EventProductCreated     EventType = "product.created"
	EventProductUpdated     EventType = "product.updated"
	EventProductDeleted     EventType = "product.deleted"
	EventProductBulkDeleted EventType = "product.bulk_deleted"
	EventUploadStarted      EventType = "upload.started"
	EventUploadCompleted    EventType = "upload.completed"
	EventUploadFailed       EventType = "upload.failed"
)

// AllEventTypes lists every subscribable event type
func AllEventTypes() []EventType {
	return []EventType{
		EventProductCreated,
		EventProductUpdated,
		EventProductDeleted,
		EventProductBulkDeleted,
		EventUploadStarted,
		EventUploadCompleted,
		EventUploadFailed,
	}
}

// IsValid checks if the event type is in the catalog
func (t EventType) IsValid() bool {
	switch t {
	case EventProductCreated, EventProductUpdated, EventProductDeleted, EventProductBulkDeleted,
		EventUploadStarted, EventUploadCompleted, EventUploadFailed:
		return true
	}
	return false
}
