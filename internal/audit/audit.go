// Package audit records state-changing actions as append-only rows. Recording
// is best-effort: a failed audit write is logged and swallowed, never
// propagated, so observability failures cannot fail the business mutation.
package audit

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/complyard/complyard/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder writes audit log entries. It must be invoked only after the
// business mutation's store write has returned success.
type Recorder struct {
	db      *gorm.DB
	dropped atomic.Int64
}

// NewRecorder creates a recorder bound to the given database.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record inserts one audit entry describing an action. userID is nil for
// system actions, entityID is nil for system-level events. details may be any
// JSON-serializable value; a value that cannot be serialized drops the record
// rather than storing a mangled payload. Failures are logged and swallowed;
// the returned record is nil when recording failed.
func (r *Recorder) Record(userID *uint, action, entityType string, entityID *uint, details any, requestID string) *models.AuditLog {
	if action == "" || entityType == "" {
		r.drop("audit record missing action or entity type", nil, action, entityType)
		return nil
	}

	var payload datatypes.JSON
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			r.drop("audit details not serializable", err, action, entityType)
			return nil
		}
		payload = datatypes.JSON(data)
	}

	if userID == nil && entityID == nil {
		// System action with no target; allowed, but worth surfacing.
		slog.Warn("Audit record has neither actor nor target", "action", action, "entity_type", entityType)
	}

	entry := models.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    payload,
		RequestID:  requestID,
		CreatedAt:  time.Now().UTC(),
	}

	if err := r.db.Create(&entry).Error; err != nil {
		r.drop("failed to write audit record", err, action, entityType)
		return nil
	}

	return &entry
}

// Dropped returns the number of audit records lost since startup. There is no
// reconciliation mechanism beyond this counter and the error logs.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) drop(msg string, err error, action, entityType string) {
	r.dropped.Add(1)
	slog.Error(msg, "error", err, "action", action, "entity_type", entityType)
}
