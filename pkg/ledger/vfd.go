package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// VFDClient implements Client against the VFD wallet API.
type VFDClient struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	client       *http.Client
	log          zerolog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewVFDClient(baseURL, clientID, clientSecret string, timeout time.Duration, log zerolog.Logger) *VFDClient {
	if baseURL == "" {
		baseURL = "https://api.vfdtech.ng"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VFDClient{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		client:       &http.Client{Timeout: timeout},
		log:          log.With().Str("component", "vfd").Logger(),
	}
}

type vfdTokenReq struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type vfdTokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// getToken returns the cached token, logging in again shortly before it expires.
func (p *VFDClient) getToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}
	body, _ := json.Marshal(vfdTokenReq{ClientID: p.ClientID, ClientSecret: p.ClientSecret})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vfd auth failed: %d", resp.StatusCode)
	}
	var out vfdTokenResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	p.token = out.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - 30*time.Second)
	return p.token, nil
}

type vfdTxReq struct {
	WalletID    string `json:"wallet_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	Currency    string `json:"currency"`
}

type vfdTxResp struct {
	TransactionRef string `json:"transaction_ref"`
	Status         string `json:"status"`
	Message        string `json:"message"`
}

func (p *VFDClient) Debit(ctx context.Context, e Entry) (*Receipt, error) {
	return p.post(ctx, "/transactions/debit", e)
}

func (p *VFDClient) Credit(ctx context.Context, e Entry) (*Receipt, error) {
	return p.post(ctx, "/transactions/credit", e)
}

func (p *VFDClient) post(ctx context.Context, path string, e Entry) (*Receipt, error) {
	if e.WalletID == nil || *e.WalletID == "" {
		return nil, ErrWalletNotProvisioned
	}
	token, err := p.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("vfd login: %w", err)
	}
	// the API takes naira with two decimals
	amount := decimal.New(e.Amount, -2).StringFixed(2)
	body, _ := json.Marshal(vfdTxReq{
		WalletID:    *e.WalletID,
		Amount:      amount,
		Description: e.Memo,
		Reference:   e.Reference,
		Currency:    "NGN",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Client-ID", p.ClientID)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	p.log.Debug().Str("path", path).Str("reference", e.Reference).Int("status", resp.StatusCode).Msg("vfd response")

	var out vfdTxResp
	_ = json.Unmarshal(respBody, &out)
	switch {
	case resp.StatusCode == http.StatusConflict:
		return &Receipt{Reference: e.Reference, ProviderRef: out.TransactionRef, Duplicate: true}, nil
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", ErrDeclined, out.Message)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, fmt.Errorf("vfd %s: %d", path, resp.StatusCode)
	}
	if out.Status != "" && out.Status != "success" && out.Status != "successful" {
		return nil, fmt.Errorf("%w: status %s", ErrDeclined, out.Status)
	}
	return &Receipt{Reference: e.Reference, ProviderRef: out.TransactionRef}, nil
}
