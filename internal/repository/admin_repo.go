package repository

import (
	"ajo/internal/domain"
	"ajo/internal/models"

	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalUsers         int64 `json:"total_users"`
	ActiveGroups       int64 `json:"active_groups"`
	PendingGroups      int64 `json:"pending_groups"`
	CompletedGroups    int64 `json:"completed_groups"`
	TotalContributions int64 `json:"total_contributions"`
	TotalPayouts       int64 `json:"total_payouts"`
	FeeRevenue         int64 `json:"fee_revenue"`
	OpenDisputes       int64 `json:"open_disputes"`
	OpenFraudCases     int64 `json:"open_fraud_cases"`
}

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) GetDashboardStats() (*DashboardStats, error) {
	var s DashboardStats
	r.db.Model(&models.User{}).Count(&s.TotalUsers)
	r.db.Model(&models.AjoGroup{}).Where("status = ?", domain.GroupStatusActive).Count(&s.ActiveGroups)
	r.db.Model(&models.AjoGroup{}).Where("status = ?", domain.GroupStatusPending).Count(&s.PendingGroups)
	r.db.Model(&models.AjoGroup{}).Where("status = ?", domain.GroupStatusCompleted).Count(&s.CompletedGroups)

	var sum struct{ Total int64 }
	r.db.Model(&models.Transaction{}).Select("COALESCE(SUM(amount), 0) as total").
		Where("type = ? AND status = ?", domain.TxAjoContribution, domain.TxStatusSuccess).Scan(&sum)
	s.TotalContributions = sum.Total

	sum.Total = 0
	r.db.Model(&models.Transaction{}).Select("COALESCE(SUM(amount), 0) as total").
		Where("type = ? AND status = ?", domain.TxAjoPayout, domain.TxStatusSuccess).Scan(&sum)
	s.TotalPayouts = sum.Total

	sum.Total = 0
	r.db.Model(&models.Transaction{}).Select("COALESCE(SUM(fee), 0) as total").
		Where("status = ?", domain.TxStatusSuccess).Scan(&sum)
	s.FeeRevenue = sum.Total

	r.db.Model(&models.Dispute{}).Where("status = ?", domain.DisputeStatusOpen).Count(&s.OpenDisputes)
	r.db.Model(&models.FraudCase{}).Where("status = ?", domain.FraudStatusOpen).Count(&s.OpenFraudCases)
	return &s, nil
}
