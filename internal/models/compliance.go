package models

import "time"

// ComplianceFramework is a regulatory or industry framework (e.g. ISO 27001).
type ComplianceFramework struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	OwnerID     *uint     `gorm:"index" json:"owner_id"`
	Owner       *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ComplianceRequirement is a single requirement within a framework.
type ComplianceRequirement struct {
	ID          uint                 `gorm:"primarykey" json:"id"`
	FrameworkID uint                 `gorm:"index;not null" json:"framework_id"`
	Framework   *ComplianceFramework `gorm:"foreignKey:FrameworkID" json:"framework,omitempty"`
	Code        string               `json:"code"`
	Title       string               `gorm:"not null" json:"title"`
	Description string               `json:"description"`
	Status      string               `gorm:"default:pending" json:"status"`
	OwnerID     *uint                `gorm:"index" json:"owner_id"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// ComplianceControl is an implemented control satisfying a requirement.
type ComplianceControl struct {
	ID             uint                   `gorm:"primarykey" json:"id"`
	RequirementID  uint                   `gorm:"index;not null" json:"requirement_id"`
	Requirement    *ComplianceRequirement `gorm:"foreignKey:RequirementID" json:"requirement,omitempty"`
	Name           string                 `gorm:"not null" json:"name"`
	Description    string                 `json:"description"`
	Implementation string                 `gorm:"default:planned" json:"implementation"` // planned, partial, implemented
	LastAssessedAt *time.Time             `json:"last_assessed_at"`
	OwnerID        *uint                  `gorm:"index" json:"owner_id"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}
