package repository

import (
	"ajo/internal/domain"
	"ajo/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(u *models.User) error {
	return r.db.Create(u).Error
}

func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var u models.User
	err := r.db.First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var u models.User
	err := r.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Update(u *models.User) error {
	return r.db.Save(u).Error
}

// AddPoints adjusts the points counter in place.
func (r *UserRepository) AddPoints(userID uint, delta int) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("points", gorm.Expr("points + ?", delta)).Error
}

func (r *UserRepository) SetWithdrawalStatus(userID uint, status string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("withdrawal_status", status).Error
}

func (r *UserRepository) SetTransactionPin(userID uint, hash string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("transaction_pin_hash", hash).Error
}

func (r *UserRepository) SetFCMToken(userID uint, token string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", token).Error
}

func (r *UserRepository) ListAdmins() ([]models.User, error) {
	var list []models.User
	err := r.db.Where("role = ?", domain.RoleAdmin).Find(&list).Error
	return list, err
}

func (r *UserRepository) GetByWalletID(walletID string) (*models.User, error) {
	var u models.User
	err := r.db.Where("vfd_wallet_id = ?", walletID).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}
