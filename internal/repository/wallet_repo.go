package repository

import (
	"errors"
	"time"

	"ajo/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetOrCreate(userID uint) (*models.Wallet, error) {
	err := r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Wallet{UserID: userID, Currency: "NGN"}).Error
	if err != nil {
		return nil, err
	}
	return r.GetByUserID(userID)
}

// Credit adds amount (kobo) in a single UPDATE so concurrent callers never lose writes.
func (r *WalletRepository) Credit(userID uint, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if _, err := r.GetOrCreate(userID); err != nil {
		return err
	}
	return r.db.Model(&models.Wallet{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
		"balance_kobo":        gorm.Expr("balance_kobo + ?", amount),
		"last_transaction_at": time.Now(),
	}).Error
}

// Debit subtracts amount only if the balance covers it; the guard lives in the WHERE clause.
func (r *WalletRepository) Debit(userID uint, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	res := r.db.Model(&models.Wallet{}).
		Where("user_id = ? AND balance_kobo >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance_kobo":        gorm.Expr("balance_kobo - ?", amount),
			"last_transaction_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (r *WalletRepository) Balance(userID uint) (int64, error) {
	w, err := r.GetByUserID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return w.BalanceKobo, nil
}
