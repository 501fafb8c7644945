package handler

import (
	"net/http"

	"ajo/internal/middleware"
	"ajo/internal/service"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	svc *service.WalletService
}

func NewWalletHandler(svc *service.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

// GetBalance handles GET /me/wallet. Amounts are in kobo.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	w, err := h.svc.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// Fund handles POST /me/wallet/fund.
func (h *WalletHandler) Fund(c *gin.Context) {
	var req struct {
		Amount  int64  `json:"amount" binding:"required"`
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Channel == "" {
		req.Channel = "bank_transfer"
	}
	tx, err := h.svc.Fund(c.Request.Context(), middleware.GetUserID(c), req.Amount, req.Channel)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// Transactions handles GET /me/transactions.
func (h *WalletHandler) Transactions(c *gin.Context) {
	list, err := h.svc.ListTransactions(c.Request.Context(), middleware.GetUserID(c), queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list})
}
