package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit action verbs. Entity handlers use the CRUD verbs; the auth layer
// records its own domain-specific actions.
const (
	ActionCreate      = "CREATE"
	ActionUpdate      = "UPDATE"
	ActionDelete      = "DELETE"
	ActionRegister    = "REGISTER"
	ActionLogin       = "LOGIN"
	ActionLoginFailed = "LOGIN_FAILED"
	ActionLogout      = "LOGOUT"
	ActionVerifyEmail = "VERIFY_EMAIL"
	ActionPurge       = "PURGE_AUDIT_LOGS"
)

// AuditLog is an immutable record of one state-changing action. Rows are
// never updated; deletion happens only through the administrative purge
// endpoint. UserID is nil for system actions (e.g. a failed login for an
// unknown email), EntityID is nil for system-level events.
type AuditLog struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	UserID     *uint          `gorm:"index" json:"user_id"`
	User       *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string         `gorm:"not null;index" json:"action"`
	EntityType string         `gorm:"not null;index" json:"entity_type"`
	EntityID   *uint          `gorm:"index" json:"entity_id"`
	Details    datatypes.JSON `gorm:"type:text" json:"details"`
	RequestID  string         `json:"request_id"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
}
