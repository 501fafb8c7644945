package handler

import (
	"net/http"

	"ajo/internal/middleware"
	"ajo/internal/service"

	"github.com/gin-gonic/gin"
)

type MeHandler struct {
	authSvc *service.AuthService
	ajoSvc  *service.AjoService
}

func NewMeHandler(authSvc *service.AuthService, ajoSvc *service.AjoService) *MeHandler {
	return &MeHandler{authSvc: authSvc, ajoSvc: ajoSvc}
}

// Profile handles GET /me.
func (h *MeHandler) Profile(c *gin.Context) {
	u, err := h.authSvc.Profile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "has_pin": u.HasPin()})
}

// RegisterFCMToken saves the FCM token for push notifications.
func (h *MeHandler) RegisterFCMToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.authSvc.SetFCMToken(c.Request.Context(), middleware.GetUserID(c), req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetPin handles PUT /me/pin.
func (h *MeHandler) SetPin(c *gin.Context) {
	var req struct {
		Pin string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.ajoSvc.SetTransactionPin(c.Request.Context(), middleware.GetUserID(c), req.Pin); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Disputes handles GET /me/disputes.
func (h *MeHandler) Disputes(c *gin.Context) {
	list, err := h.ajoSvc.ListUserDisputes(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disputes": list})
}
