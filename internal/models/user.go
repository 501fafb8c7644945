package models

import (
	"time"

	"ajo/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Email              string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone              string         `gorm:"size:20;index" json:"phone"`
	FirstName          string         `gorm:"size:64" json:"first_name"`
	LastName           string         `gorm:"size:64" json:"last_name"`
	PasswordHash       string         `gorm:"size:255" json:"-"`
	TransactionPinHash string         `gorm:"size:255" json:"-"`
	Role               string         `gorm:"size:20;not null;default:'USER';index" json:"role"`
	ProfileLevel       int            `gorm:"not null;default:1" json:"profile_level"` // 1-3, KYC tier
	Points             int            `gorm:"not null;default:0" json:"points"`
	WithdrawalStatus   string         `gorm:"size:10;not null;default:'inactive'" json:"withdrawal_status"`
	VFDWalletID        *string        `gorm:"uniqueIndex;size:64" json:"-"` // nil until the bank wallet is provisioned
	FCMToken           string         `gorm:"size:512" json:"-"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }

func (u *User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// HasPin reports whether a transaction PIN has been set.
func (u *User) HasPin() bool { return u.TransactionPinHash != "" }
