package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"ajo/config"
	"ajo/internal/repository"
	"ajo/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type LedgerWebhookHandler struct {
	users     *repository.UserRepository
	walletSvc *service.WalletService
	cfg       *config.Config
	log       zerolog.Logger
}

func NewLedgerWebhookHandler(users *repository.UserRepository, walletSvc *service.WalletService, cfg *config.Config, log zerolog.Logger) *LedgerWebhookHandler {
	return &LedgerWebhookHandler{users: users, walletSvc: walletSvc, cfg: cfg, log: log.With().Str("component", "ledger_webhook").Logger()}
}

type inwardCredit struct {
	Reference string `json:"reference"`
	WalletID  string `json:"wallet_id"`
	Amount    int64  `json:"amount"` // kobo
	Status    string `json:"status"`
	Channel   string `json:"channel"`
}

// Handle records an inward transfer into a user's bank wallet.
// Expects JSON {reference, wallet_id, amount, status, channel} signed in X-Webhook-Signature.
func (h *LedgerWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.cfg.Webhook.Secret != "" && !h.verifySignature(body, c.GetHeader("X-Webhook-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var payload inwardCredit
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if payload.Reference == "" || payload.WalletID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference and wallet_id required"})
		return
	}
	log := h.log.With().Str("reference", payload.Reference).Logger()
	if !strings.EqualFold(payload.Status, "successful") && !strings.EqualFold(payload.Status, "success") {
		log.Info().Str("status", payload.Status).Msg("ignoring non-final credit")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	u, err := h.users.GetByWalletID(payload.WalletID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn().Str("wallet_id", payload.WalletID).Msg("credit for unknown wallet")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	channel := payload.Channel
	if channel == "" {
		channel = "bank_transfer"
	}
	_, duplicate, err := h.walletSvc.Deposit(c.Request.Context(), u.ID, payload.Amount, payload.Reference, channel)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": duplicate})
}

func (h *LedgerWebhookHandler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.cfg.Webhook.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
