package models

import (
	"time"

	"gorm.io/datatypes"
)

type FraudCase struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UserID      *uint             `gorm:"index" json:"user_id"`
	AjoID       *uint             `gorm:"index" json:"ajo_id"`
	Type        string            `gorm:"size:40;not null;index" json:"type"`
	RiskScore   int               `gorm:"not null;default:0" json:"risk_score"` // 0-100
	Severity    string            `gorm:"size:10;not null;default:'medium'" json:"severity"`
	Status      string            `gorm:"size:20;not null;default:'open';index" json:"status"`
	Description string            `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (FraudCase) TableName() string { return "fraud_cases" }
