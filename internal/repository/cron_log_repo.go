package repository

import (
	"ajo/internal/models"

	"gorm.io/gorm"
)

type CronLogRepository struct {
	db *gorm.DB
}

func NewCronLogRepository(db *gorm.DB) *CronLogRepository {
	return &CronLogRepository{db: db}
}

func (r *CronLogRepository) Create(l *models.CronLog) error {
	return r.db.Create(l).Error
}

func (r *CronLogRepository) Update(l *models.CronLog) error {
	return r.db.Save(l).Error
}

// Latest returns the most recent run of job, or nil when it never ran.
func (r *CronLogRepository) Latest(job string) (*models.CronLog, error) {
	var list []models.CronLog
	err := r.db.Where("job_name = ?", job).Order("started_at DESC, id DESC").Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (r *CronLogRepository) List(job string, limit int) ([]models.CronLog, error) {
	q := r.db.Model(&models.CronLog{})
	if job != "" {
		q = q.Where("job_name = ?", job)
	}
	var list []models.CronLog
	err := q.Order("started_at DESC, id DESC").Limit(limit).Find(&list).Error
	return list, err
}
