package repository

import (
	"time"

	"ajo/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DisputeRepository struct {
	db *gorm.DB
}

func NewDisputeRepository(db *gorm.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) Create(d *models.Dispute) error {
	return r.db.Create(d).Error
}

func (r *DisputeRepository) GetForUpdate(id uint) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, id).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepository) ListByAjo(ajoID uint, status string) ([]models.Dispute, error) {
	q := r.db.Where("ajo_id = ?", ajoID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var list []models.Dispute
	err := q.Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

func (r *DisputeRepository) ListByUser(userID uint) ([]models.Dispute, error) {
	var list []models.Dispute
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

func (r *DisputeRepository) Resolve(id uint, status, resolution string, by uint, at time.Time) error {
	return r.db.Model(&models.Dispute{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      status,
		"resolution":  resolution,
		"resolved_by": by,
		"resolved_at": at,
	}).Error
}
