package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newVFDServer(t *testing.T, tx http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var logins int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&logins, 1)
		json.NewEncoder(w).Encode(vfdTokenResp{AccessToken: "tok", ExpiresIn: 3600})
	})
	mux.HandleFunc("/transactions/", tx)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &logins
}

func walletID(s string) *string { return &s }

func TestVFDDebit(t *testing.T) {
	var got vfdTxReq
	srv, logins := newVFDServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/debit" || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(vfdTxResp{TransactionRef: "vfd-1", Status: "success"})
	})
	c := NewVFDClient(srv.URL, "id", "secret", time.Second, zerolog.Nop())

	rec, err := c.Debit(context.Background(), Entry{UserID: 1, WalletID: walletID("w1"), Amount: 105050, Reference: "AC-1-1-1-1"})
	require.NoError(t, err)
	require.Equal(t, "vfd-1", rec.ProviderRef)
	require.False(t, rec.Duplicate)
	require.Equal(t, "1050.50", got.Amount)
	require.Equal(t, "AC-1-1-1-1", got.Reference)

	_, err = c.Debit(context.Background(), Entry{WalletID: walletID("w1"), Amount: 100, Reference: "AC-1-1-1-2"})
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(logins), "token is cached")
}

func TestVFDResponses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    vfdTxResp
		wantErr error
		dup     bool
	}{
		{"duplicate reference", http.StatusConflict, vfdTxResp{TransactionRef: "vfd-9"}, nil, true},
		{"insufficient funds", http.StatusPaymentRequired, vfdTxResp{Message: "insufficient funds"}, ErrDeclined, false},
		{"declined status", http.StatusOK, vfdTxResp{Status: "failed"}, ErrDeclined, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newVFDServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			})
			c := NewVFDClient(srv.URL, "id", "secret", time.Second, zerolog.Nop())
			rec, err := c.Credit(context.Background(), Entry{WalletID: walletID("w1"), Amount: 500, Reference: "R"})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.dup, rec.Duplicate)
		})
	}

	t.Run("server error", func(t *testing.T) {
		srv, _ := newVFDServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		c := NewVFDClient(srv.URL, "id", "secret", time.Second, zerolog.Nop())
		_, err := c.Debit(context.Background(), Entry{WalletID: walletID("w1"), Amount: 500, Reference: "R"})
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrDeclined)
	})
}

func TestVFDRequiresWallet(t *testing.T) {
	c := NewVFDClient("http://127.0.0.1:1", "id", "secret", time.Second, zerolog.Nop())
	_, err := c.Debit(context.Background(), Entry{Amount: 500, Reference: "R"})
	require.ErrorIs(t, err, ErrWalletNotProvisioned)
}

func TestStubDeduplicates(t *testing.T) {
	s := NewStubClient()
	ctx := context.Background()
	first, err := s.Credit(ctx, Entry{Amount: 100, Reference: "FND-1"})
	require.NoError(t, err)
	again, err := s.Debit(ctx, Entry{Amount: 100, Reference: "FND-1"})
	require.NoError(t, err)
	require.True(t, again.Duplicate)
	require.Equal(t, first.ProviderRef, again.ProviderRef)

	_, err = s.Debit(ctx, Entry{Amount: 0, Reference: "X"})
	require.ErrorIs(t, err, ErrDeclined)
}
