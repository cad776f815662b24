package models

import "time"

// Threat is an entry in the threat catalogue.
type Threat struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Source      string    `json:"source"` // internal, external, partner
	Severity    string    `json:"severity"`
	Status      string    `gorm:"default:active" json:"status"`
	OwnerID     *uint     `gorm:"index" json:"owner_id"`
	Owner       *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
