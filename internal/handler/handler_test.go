package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ajo/config"
	"ajo/internal/database"
	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"
	"ajo/internal/service"
	"ajo/pkg/ledger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{service.ErrValidation.WithMessage("title is required"), http.StatusBadRequest, "VALIDATION_ERROR", "title is required"},
		{service.ErrGroupNotFound, http.StatusNotFound, "GROUP_NOT_FOUND", "ajo group not found"},
		{service.ErrNotAMember, http.StatusForbidden, "NOT_A_MEMBER", "not a member of this group"},
		{service.ErrAlreadyContributed, http.StatusConflict, "ALREADY_CONTRIBUTED", "already contributed this cycle"},
		{service.ErrInsufficientBalance, http.StatusPaymentRequired, "INSUFFICIENT_BALANCE", "insufficient balance"},
		{service.ErrPayoutFailed.Wrap(errors.New("ledger down")), http.StatusBadGateway, "PAYOUT_FAILED", "payout failed"},
		{errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR", "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tt.err)
			require.Equal(t, tt.status, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.Equal(t, tt.code, body["code"])
			require.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestParamID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "0"}}
	_, ok := paramID(c, "id")
	require.False(t, ok)
	require.Equal(t, http.StatusBadRequest, w.Code)

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: "12"}}
	id, ok := paramID(c, "id")
	require.True(t, ok)
	require.Equal(t, uint(12), id)
}

const webhookSecret = "whsec"

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestLedgerWebhook(t *testing.T) {
	db, err := database.NewTestDB(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	repos := repository.New(db)
	walletID := "vfd-77"
	u := &models.User{Email: "payer@example.com", Role: domain.RoleUser, ProfileLevel: 1, WithdrawalStatus: domain.WithdrawalInactive, VFDWalletID: &walletID}
	require.NoError(t, repos.Users.Create(u))

	cfg := &config.Config{Webhook: config.WebhookConfig{Secret: webhookSecret}}
	ajo := service.NewAjoService(repos, ledger.NewStubClient(), nil, config.AjoConfig{}, time.Second, zerolog.Nop())
	wallets := service.NewWalletService(repos, ajo, nil, zerolog.Nop())
	h := NewLedgerWebhookHandler(repos.Users, wallets, cfg, zerolog.Nop())

	r := gin.New()
	r.POST("/webhooks/ledger", h.Handle)
	post := func(body, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/ledger", strings.NewReader(body))
		req.Header.Set("X-Webhook-Signature", sig)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	body := `{"reference":"NIP-0001","wallet_id":"vfd-77","amount":250000,"status":"successful","channel":"nip"}`
	require.Equal(t, http.StatusUnauthorized, post(body, "deadbeef").Code)

	w := post(body, sign(body))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"received":true,"duplicate":false}`, w.Body.String())

	w = post(body, sign(body))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"received":true,"duplicate":true}`, w.Body.String())

	balance, err := repos.Wallets.Balance(u.ID)
	require.NoError(t, err)
	require.Equal(t, int64(250000), balance)

	pending := `{"reference":"NIP-0002","wallet_id":"vfd-77","amount":1000,"status":"pending"}`
	require.Equal(t, http.StatusOK, post(pending, sign(pending)).Code)
	unknown := `{"reference":"NIP-0003","wallet_id":"nobody","amount":1000,"status":"success"}`
	require.Equal(t, http.StatusOK, post(unknown, sign(unknown)).Code)

	balance, err = repos.Wallets.Balance(u.ID)
	require.NoError(t, err)
	require.Equal(t, int64(250000), balance)

	_, err = repos.Transactions.GetByReference("DEP-NIP-0001")
	require.NoError(t, err)
}

type stubNotifications struct {
	list     []models.Notification
	countErr error
}

func (s *stubNotifications) ListByUserID(userID uint, limit, offset int) ([]models.Notification, error) {
	return s.list, nil
}

func (s *stubNotifications) CountUnread(userID uint) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return int64(len(s.list)), nil
}

func (s *stubNotifications) MarkRead(id, userID uint) error { return nil }

func TestNotificationList(t *testing.T) {
	store := &stubNotifications{list: []models.Notification{{Title: "Ajo payout received"}}}
	r := gin.New()
	r.GET("/notifications", NewNotificationHandler(store).List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Unread int64 `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, int64(1), body.Unread)

	store.countErr = errors.New("database is locked")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "unread")
}
