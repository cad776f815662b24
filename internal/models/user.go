package models

import (
	"time"

	"gorm.io/gorm"
)

// Role names assignable to users. The rbac policy table decides what each
// role may do per resource family.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"
	RoleGuest     = "guest"
)

// ValidRole reports whether name is one of the known roles.
func ValidRole(name string) bool {
	switch name {
	case RoleAdmin, RoleModerator, RoleUser, RoleGuest:
		return true
	}
	return false
}

// User represents an authenticated principal. Users are soft-deleted only;
// audit records keep referencing them by id after deactivation.
type User struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	Name          string         `gorm:"not null" json:"name"`
	Email         string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string         `gorm:"not null" json:"-"`
	Role          string         `gorm:"not null;default:user" json:"role"`
	EmailVerified bool           `gorm:"not null;default:false" json:"email_verified"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
