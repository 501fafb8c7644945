package models

import (
	"time"
)

// Dispute is opened for every member who defaulted when a payout ran.
type Dispute struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	AjoID      uint       `gorm:"not null;index" json:"ajo_id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	Amount     int64      `gorm:"not null" json:"amount"`
	Type       string     `gorm:"size:30;not null;index" json:"type"`
	Status     string     `gorm:"size:20;not null;default:'open';index" json:"status"`
	Reason     string     `gorm:"type:text" json:"reason"`
	Resolution string     `gorm:"type:text" json:"resolution"`
	Rotation   int        `gorm:"not null;default:1" json:"rotation"`
	Slot       int        `gorm:"not null;default:1" json:"slot"`
	Reference  string     `gorm:"size:128;index" json:"reference"` // penalty transaction reference
	ResolvedBy *uint      `json:"resolved_by"`
	ResolvedAt *time.Time `json:"resolved_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Ajo  AjoGroup `gorm:"foreignKey:AjoID" json:"-"`
	User User     `gorm:"foreignKey:UserID" json:"-"`
}

func (Dispute) TableName() string {
	return "disputes"
}
