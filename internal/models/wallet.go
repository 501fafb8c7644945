package models

import (
	"time"
)

// Wallet is the local mirror of a user's bank wallet. Balance is in kobo and never negative.
type Wallet struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	BalanceKobo       int64      `gorm:"not null;default:0" json:"balance_kobo"`
	Currency          string     `gorm:"size:3;default:'NGN'" json:"currency"`
	LastTransactionAt *time.Time `json:"last_transaction_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}
