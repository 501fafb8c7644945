package handler

import (
	"net/http"

	"ajo/internal/domain"
	"ajo/internal/repository"
	"ajo/internal/scheduler"
	"ajo/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	repos     *repository.Repositories
	ajoSvc    *service.AjoService
	scheduler *scheduler.Scheduler
}

func NewAdminHandler(repos *repository.Repositories, ajoSvc *service.AjoService, sched *scheduler.Scheduler) *AdminHandler {
	return &AdminHandler{repos: repos, ajoSvc: ajoSvc, scheduler: sched}
}

// Dashboard handles GET /admin/dashboard: overview stats.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.repos.WithContext(c.Request.Context()).Admin.GetDashboardStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ForcePayout handles POST /admin/ajo/:id/payout: runs the payout now.
func (h *AdminHandler) ForcePayout(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.scheduler.RunGroup(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout": res})
}

// CronLogs handles GET /admin/cron/logs?job=.
func (h *AdminHandler) CronLogs(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	list, err := h.repos.WithContext(c.Request.Context()).CronLogs.List(c.Query("job"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cron logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": list})
}

// CronStatus handles GET /admin/cron/status.
func (h *AdminHandler) CronStatus(c *gin.Context) {
	st, err := h.scheduler.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// FraudCases handles GET /admin/fraud-cases?status=&page=&limit=.
func (h *AdminHandler) FraudCases(c *gin.Context) {
	page, limit := queryInt(c, "page", 1), queryInt(c, "limit", 20)
	list, total, err := h.ajoSvc.ListFraudCases(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fraud_cases": list, "total": total, "page": page})
}

// UpdateFraudCase handles PATCH /admin/fraud-cases/:id.
func (h *AdminHandler) UpdateFraudCase(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required,oneof=open investigating resolved"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.repos.WithContext(c.Request.Context()).Fraud.UpdateStatus(id, req.Status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// Transactions handles GET /admin/transactions?type=&page=&limit=.
func (h *AdminHandler) Transactions(c *gin.Context) {
	page, limit := queryInt(c, "page", 1), queryInt(c, "limit", 20)
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, total, err := h.repos.WithContext(c.Request.Context()).Transactions.List(c.Query("type"), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list, "total": total, "page": page})
}

// GroupDisputes handles GET /admin/ajo/:id/disputes; admins see every group.
func (h *AdminHandler) GroupDisputes(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := h.repos.WithContext(c.Request.Context()).Disputes.ListByAjo(id, c.DefaultQuery("status", domain.DisputeStatusOpen))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load disputes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"disputes": list})
}
