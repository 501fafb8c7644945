package models

import (
	"time"

	"ajo/internal/domain"
)

// AjoGroup is a rotating savings group. Amounts are in kobo.
// Groups are never deleted, only moved between statuses.
type AjoGroup struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Title              string    `gorm:"size:120;not null" json:"title"`
	Description        string    `gorm:"type:text" json:"description"`
	ContributionAmount int64     `gorm:"not null" json:"contribution_amount"`
	Frequency          string    `gorm:"size:10;not null;index" json:"frequency"`
	Slots              int       `gorm:"not null" json:"slots"`
	StartDate          time.Time `gorm:"not null" json:"start_date"`
	CurrentSlot        int       `gorm:"not null;default:1" json:"current_slot"`
	Rotation           int       `gorm:"not null;default:1" json:"rotation"`
	Status             string    `gorm:"size:20;not null;default:'pending';index" json:"status"`
	EarlySlotsReserved bool      `gorm:"not null;default:false" json:"early_slots_reserved"`
	CreatorID          uint      `gorm:"not null;index" json:"creator_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	Creator User        `gorm:"foreignKey:CreatorID" json:"-"`
	Members []AjoMember `gorm:"foreignKey:AjoID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
}

func (AjoGroup) TableName() string { return "ajo_groups" }

func (g *AjoGroup) IsActive() bool { return g.Status == domain.GroupStatusActive }

// AjoMember is a user's seat in a group. (ajo_id, slot_number) and (ajo_id, user_id) are unique.
type AjoMember struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	AjoID           uint       `gorm:"not null;uniqueIndex:idx_ajo_member_slot;uniqueIndex:idx_ajo_member_user" json:"ajo_id"`
	UserID          uint       `gorm:"not null;uniqueIndex:idx_ajo_member_user;index" json:"user_id"`
	SlotNumber      int        `gorm:"not null;uniqueIndex:idx_ajo_member_slot" json:"slot_number"`
	IsAdmin         bool       `gorm:"not null;default:false" json:"is_admin"`
	HasPaid         bool       `gorm:"not null;default:false" json:"has_paid"`
	LastPaymentDate *time.Time `json:"last_payment_date"`
	PenaltyCount    int        `gorm:"not null;default:0" json:"penalty_count"`
	CreatedAt       time.Time  `json:"joined_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (AjoMember) TableName() string { return "ajo_members" }
