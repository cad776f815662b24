package models

import "time"

// Incident is a reported security or operational incident.
type Incident struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	Status      string     `gorm:"default:open" json:"status"`
	OccurredAt  *time.Time `json:"occurred_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	OwnerID     *uint      `gorm:"index" json:"owner_id"`
	Owner       *User      `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
