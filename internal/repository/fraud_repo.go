package repository

import (
	"ajo/internal/models"

	"gorm.io/gorm"
)

type FraudRepository struct {
	db *gorm.DB
}

func NewFraudRepository(db *gorm.DB) *FraudRepository {
	return &FraudRepository{db: db}
}

func (r *FraudRepository) Create(f *models.FraudCase) error {
	return r.db.Create(f).Error
}

func (r *FraudRepository) List(status string, page, limit int) ([]models.FraudCase, int64, error) {
	q := r.db.Model(&models.FraudCase{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	q.Count(&total)
	var list []models.FraudCase
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

func (r *FraudRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.FraudCase{}).Where("id = ?", id).Update("status", status).Error
}
