package models

import (
	"time"

	"gorm.io/datatypes"
)

// CronLog audits every scheduler run.
type CronLog struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	JobName         string            `gorm:"size:64;not null;index" json:"job_name"`
	Status          string            `gorm:"size:20;not null;index" json:"status"`
	ExecutionTimeMs int64             `gorm:"not null;default:0" json:"execution_time_ms"`
	StartedAt       time.Time         `gorm:"not null" json:"started_at"`
	FinishedAt      *time.Time        `json:"finished_at"`
	Error           string            `gorm:"type:text" json:"error,omitempty"`
	Metadata        datatypes.JSONMap `json:"metadata"`
	CreatedAt       time.Time         `json:"created_at"`
}

func (CronLog) TableName() string {
	return "cron_logs"
}
