package repository

import (
	"ajo/internal/models"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Append inserts a new log row. The unique reference rejects duplicates.
func (r *TransactionRepository) Append(t *models.Transaction) error {
	return r.db.Create(t).Error
}

func (r *TransactionRepository) GetByReference(ref string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.Where("reference = ?", ref).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) ExistsReference(ref string) (bool, error) {
	var c int64
	err := r.db.Model(&models.Transaction{}).Where("reference = ?", ref).Count(&c).Error
	return c > 0, err
}

func (r *TransactionRepository) UpdateStatus(ref, status string) error {
	return r.db.Model(&models.Transaction{}).Where("reference = ?", ref).Update("status", status).Error
}

func (r *TransactionRepository) ListByUser(userID uint, limit, offset int) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *TransactionRepository) ListByAjo(ajoID uint, txType string) ([]models.Transaction, error) {
	q := r.db.Where("ajo_id = ?", ajoID)
	if txType != "" {
		q = q.Where("type = ?", txType)
	}
	var list []models.Transaction
	err := q.Order("id ASC").Find(&list).Error
	return list, err
}

// List returns transactions with optional type filter (admin view).
func (r *TransactionRepository) List(txType string, page, limit int) ([]models.Transaction, int64, error) {
	q := r.db.Model(&models.Transaction{})
	if txType != "" {
		q = q.Where("type = ?", txType)
	}
	var total int64
	q.Count(&total)
	var list []models.Transaction
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}
