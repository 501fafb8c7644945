package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles every repository over one *gorm.DB so a service can
// rebind the whole set to a transaction.
type Repositories struct {
	db *gorm.DB

	Users         *UserRepository
	Wallets       *WalletRepository
	Ajo           *AjoRepository
	Transactions  *TransactionRepository
	Disputes      *DisputeRepository
	Fraud         *FraudRepository
	Notifications *NotificationRepository
	CronLogs      *CronLogRepository
	Admin         *AdminRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:            db,
		Users:         NewUserRepository(db),
		Wallets:       NewWalletRepository(db),
		Ajo:           NewAjoRepository(db),
		Transactions:  NewTransactionRepository(db),
		Disputes:      NewDisputeRepository(db),
		Fraud:         NewFraudRepository(db),
		Notifications: NewNotificationRepository(db),
		CronLogs:      NewCronLogRepository(db),
		Admin:         NewAdminRepository(db),
	}
}

func (r *Repositories) DB() *gorm.DB { return r.db }

// WithContext returns the set bound to ctx.
func (r *Repositories) WithContext(ctx context.Context) *Repositories {
	return New(r.db.WithContext(ctx))
}

// Transaction runs fn with repositories bound to a single database transaction.
// Any error returned by fn rolls the transaction back.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}
