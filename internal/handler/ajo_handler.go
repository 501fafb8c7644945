package handler

import (
	"net/http"
	"strconv"

	"ajo/internal/middleware"
	"ajo/internal/repository"
	"ajo/internal/service"

	"github.com/gin-gonic/gin"
)

type AjoHandler struct {
	svc *service.AjoService
}

func NewAjoHandler(svc *service.AjoService) *AjoHandler {
	return &AjoHandler{svc: svc}
}

// Create handles POST /ajo. contribution_amount is in kobo; start_date is RFC 3339.
func (h *AjoHandler) Create(c *gin.Context) {
	var req service.CreateGroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	g, err := h.svc.CreateGroup(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group": g})
}

func (h *AjoHandler) Activate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	g, err := h.svc.ActivateGroup(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": g})
}

func (h *AjoHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.GetGroup(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Mine handles GET /ajo/mine?status=.
func (h *AjoHandler) Mine(c *gin.Context) {
	list, err := h.svc.ListUserGroups(c.Request.Context(), middleware.GetUserID(c), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": list})
}

// Search handles GET /ajo?frequency=&min_amount=&max_amount=&q=.
func (h *AjoHandler) Search(c *gin.Context) {
	f := repository.GroupFilter{
		Frequency: c.Query("frequency"),
		Search:    c.Query("q"),
		Limit:     queryInt(c, "limit", 20),
		Offset:    queryInt(c, "offset", 0),
	}
	if v, err := strconv.ParseInt(c.Query("min_amount"), 10, 64); err == nil {
		f.MinAmount = v
	}
	if v, err := strconv.ParseInt(c.Query("max_amount"), 10, 64); err == nil {
		f.MaxAmount = v
	}
	list, total, err := h.svc.SearchGroups(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": list, "total": total})
}

func (h *AjoHandler) Join(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	m, err := h.svc.JoinGroup(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": m})
}

func (h *AjoHandler) Contribute(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Pin string `json:"pin"`
	}
	_ = c.ShouldBindJSON(&req)
	tx, err := h.svc.Contribute(c.Request.Context(), middleware.GetUserID(c), id, req.Pin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

func (h *AjoHandler) Leave(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.LeaveGroup(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AjoHandler) EarlyExit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	tx, err := h.svc.EarlyExit(c.Request.Context(), middleware.GetUserID(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// Disputes handles GET /ajo/:id/disputes?status=.
func (h *AjoHandler) Disputes(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListGroupDisputes(c.Request.Context(), middleware.GetUserID(c), id, c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disputes": list})
}

// ResolveDispute handles POST /disputes/:id/resolve.
func (h *AjoHandler) ResolveDispute(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Resolution string `json:"resolution" binding:"required"`
		Accept     bool   `json:"accept"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	d, err := h.svc.ResolveDispute(c.Request.Context(), middleware.GetUserID(c), id, req.Resolution, req.Accept)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispute": d})
}
