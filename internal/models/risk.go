package models

import (
	"time"
)

// Risk statuses used by the frontend kanban; stored as plain strings.
const (
	RiskStatusOpen      = "open"
	RiskStatusMitigated = "mitigated"
	RiskStatusAccepted  = "accepted"
	RiskStatusClosed    = "closed"
)

// Risk is an identified risk tracked in the risk register.
type Risk struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	Title          string    `gorm:"not null" json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	Severity       string    `json:"severity"`
	Likelihood     string    `json:"likelihood"`
	Impact         string    `json:"impact"`
	Status         string    `gorm:"default:open" json:"status"`
	MitigationPlan string    `json:"mitigation_plan"`
	OwnerID        *uint     `gorm:"index" json:"owner_id"`
	Owner          *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
