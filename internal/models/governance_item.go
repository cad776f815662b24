package models

import "time"

// GovernanceItem is a policy, standard, or procedure under governance review.
type GovernanceItem struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Type        string     `json:"type"` // policy, standard, procedure
	Description string     `json:"description"`
	Status      string     `gorm:"default:draft" json:"status"`
	ReviewDate  *time.Time `json:"review_date"`
	OwnerID     *uint      `gorm:"index" json:"owner_id"`
	Owner       *User      `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
