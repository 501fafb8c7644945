package repository

import (
	"time"

	"ajo/internal/domain"
	"ajo/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AjoRepository struct {
	db *gorm.DB
}

func NewAjoRepository(db *gorm.DB) *AjoRepository {
	return &AjoRepository{db: db}
}

type GroupFilter struct {
	Frequency string
	MinAmount int64
	MaxAmount int64
	Search    string
	Limit     int
	Offset    int
}

func (r *AjoRepository) Create(g *models.AjoGroup) error {
	return r.db.Create(g).Error
}

func (r *AjoRepository) GetByID(id uint) (*models.AjoGroup, error) {
	var g models.AjoGroup
	err := r.db.First(&g, id).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetForUpdate loads the group row with an exclusive lock held until the transaction ends.
func (r *AjoRepository) GetForUpdate(id uint) (*models.AjoGroup, error) {
	var g models.AjoGroup
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&g, id).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *AjoRepository) GetWithMembers(id uint) (*models.AjoGroup, error) {
	var g models.AjoGroup
	err := r.db.Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("slot_number ASC")
	}).Preload("Members.User").First(&g, id).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *AjoRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.AjoGroup{}).Where("id = ?", id).Update("status", status).Error
}

// Rotate moves the group to its next slot and status in one statement.
func (r *AjoRepository) Rotate(id uint, nextSlot, rotation int, status string) error {
	return r.db.Model(&models.AjoGroup{}).Where("id = ?", id).Updates(map[string]interface{}{
		"current_slot": nextSlot,
		"rotation":     rotation,
		"status":       status,
	}).Error
}

// Restart opens a new rotation at slot 1 starting from startDate.
func (r *AjoRepository) Restart(id uint, rotation int, startDate time.Time) error {
	return r.db.Model(&models.AjoGroup{}).Where("id = ?", id).Updates(map[string]interface{}{
		"current_slot": 1,
		"rotation":     rotation,
		"start_date":   startDate,
		"status":       domain.GroupStatusActive,
	}).Error
}

// ListPayoutCandidates returns active groups that have already started.
func (r *AjoRepository) ListPayoutCandidates(now time.Time) ([]models.AjoGroup, error) {
	var list []models.AjoGroup
	err := r.db.Where("status = ? AND start_date <= ?", domain.GroupStatusActive, now).
		Order("id ASC").Find(&list).Error
	return list, err
}

func (r *AjoRepository) ListByUser(userID uint, status string) ([]models.AjoGroup, error) {
	q := r.db.Model(&models.AjoGroup{}).
		Joins("JOIN ajo_members ON ajo_members.ajo_id = ajo_groups.id").
		Where("ajo_members.user_id = ?", userID)
	if status != "" {
		q = q.Where("ajo_groups.status = ?", status)
	}
	var list []models.AjoGroup
	err := q.Order("ajo_groups.created_at DESC").Find(&list).Error
	return list, err
}

func (r *AjoRepository) SearchActive(f GroupFilter) ([]models.AjoGroup, int64, error) {
	q := r.db.Model(&models.AjoGroup{}).Where("status = ?", domain.GroupStatusActive)
	if f.Frequency != "" {
		q = q.Where("frequency = ?", f.Frequency)
	}
	if f.MinAmount > 0 {
		q = q.Where("contribution_amount >= ?", f.MinAmount)
	}
	if f.MaxAmount > 0 {
		q = q.Where("contribution_amount <= ?", f.MaxAmount)
	}
	if f.Search != "" {
		q = q.Where("title LIKE ?", "%"+f.Search+"%")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	var list []models.AjoGroup
	err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	return list, total, err
}

func (r *AjoRepository) CreateMember(m *models.AjoMember) error {
	return r.db.Create(m).Error
}

func (r *AjoRepository) GetMember(ajoID, userID uint) (*models.AjoMember, error) {
	var m models.AjoMember
	err := r.db.Where("ajo_id = ? AND user_id = ?", ajoID, userID).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *AjoRepository) GetMemberForUpdate(ajoID, userID uint) (*models.AjoMember, error) {
	var m models.AjoMember
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("ajo_id = ? AND user_id = ?", ajoID, userID).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *AjoRepository) GetAdminMember(ajoID uint) (*models.AjoMember, error) {
	var m models.AjoMember
	err := r.db.Where("ajo_id = ? AND is_admin = ?", ajoID, true).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *AjoRepository) ListMembers(ajoID uint) ([]models.AjoMember, error) {
	var list []models.AjoMember
	err := r.db.Where("ajo_id = ?", ajoID).Order("slot_number ASC").Find(&list).Error
	return list, err
}

func (r *AjoRepository) CountMembers(ajoID uint) (int64, error) {
	var c int64
	err := r.db.Model(&models.AjoMember{}).Where("ajo_id = ?", ajoID).Count(&c).Error
	return c, err
}

func (r *AjoRepository) TakenSlots(ajoID uint) ([]int, error) {
	var slots []int
	err := r.db.Model(&models.AjoMember{}).Where("ajo_id = ?", ajoID).
		Order("slot_number ASC").Pluck("slot_number", &slots).Error
	return slots, err
}

func (r *AjoRepository) MarkPaid(memberID uint, at time.Time) error {
	return r.db.Model(&models.AjoMember{}).Where("id = ?", memberID).Updates(map[string]interface{}{
		"has_paid":          true,
		"last_payment_date": at,
	}).Error
}

func (r *AjoRepository) ResetPaid(ajoID uint) error {
	return r.db.Model(&models.AjoMember{}).Where("ajo_id = ?", ajoID).Update("has_paid", false).Error
}

func (r *AjoRepository) IncrementPenaltyCount(memberID uint) error {
	return r.db.Model(&models.AjoMember{}).Where("id = ?", memberID).
		Update("penalty_count", gorm.Expr("penalty_count + ?", 1)).Error
}

// DeleteMember removes the membership row permanently.
func (r *AjoRepository) DeleteMember(memberID uint) error {
	return r.db.Delete(&models.AjoMember{}, memberID).Error
}
