package secondary

import (
	"context"
	"time"
)

// LogWriter defines the interface for writing activity log entries.
// Implementations extract the actor from context.
type LogWriter interface {
	// LogCreate logs a create operation for an entity.
	LogCreate(ctx context.Context, entityType, entityID string) error

	// LogUpdate logs an update operation for an entity field.
	// fieldName, oldValue, newValue describe what changed.
	LogUpdate(ctx context.Context, entityType, entityID, fieldName, oldValue, newValue string) error

	// LogDelete logs a delete operation for an entity.
	LogDelete(ctx context.Context, entityType, entityID string) error
}

// ActivityLogRepository defines the secondary port for activity log persistence.
type ActivityLogRepository interface {
	// Create persists a new entry and sets its ID.
	Create(ctx context.Context, entry *ActivityLogRecord) error

	// List retrieves entries matching the given filters, newest first.
	List(ctx context.Context, filters ActivityLogFilters) ([]*ActivityLogRecord, error)

	// PruneBefore deletes entries written before the cutoff and returns how many.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ActivityLogRecord represents an activity log entry as stored in persistence.
type ActivityLogRecord struct {
	ID         int64
	Timestamp  time.Time
	ActorID    string // Empty string means null
	EntityType string
	EntityID   string
	Action     string // create, update, delete
	FieldName  string // Empty string means null
	OldValue   string // Empty string means null
	NewValue   string // Empty string means null
}

// ActivityLogFilters contains filter options for querying the activity log.
type ActivityLogFilters struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	Since      time.Time // Zero means no lower bound
	Limit      int
}

// Activity log entity types.
const (
	EntityEscalationBlock    = "escalation_block"
	EntityEscalationInstance = "escalation_instance"
	EntityBlocker            = "blocker"
)
