// Package sms sends text messages through the Africa's Talking messaging API.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidPhone = errors.New("sms: invalid phone number")
	ErrEmptyMessage = errors.New("sms: message cannot be empty")
	ErrNotDelivered = errors.New("sms: message not accepted")
)

type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

type AfricasTalking struct {
	BaseURL  string
	Username string
	APIKey   string
	From     string
	client   *http.Client
}

func NewAfricasTalking(baseURL, username, apiKey, from string) *AfricasTalking {
	if baseURL == "" {
		baseURL = "https://api.africastalking.com"
	}
	return &AfricasTalking{
		BaseURL:  baseURL,
		Username: username,
		APIKey:   apiKey,
		From:     from,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type atResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			Number string `json:"number"`
			Status string `json:"status"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (a *AfricasTalking) Send(ctx context.Context, phone, message string) error {
	if len(phone) < 10 {
		return ErrInvalidPhone
	}
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	form := url.Values{
		"username": {a.Username},
		"to":       {phone},
		"message":  {message},
		"from":     {a.From},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/version1/messaging", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("ApiKey", a.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms: africastalking status %d", resp.StatusCode)
	}
	var out atResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	recipients := out.SMSMessageData.Recipients
	if len(recipients) == 0 || recipients[0].Status != "Success" {
		return ErrNotDelivered
	}
	return nil
}

// Noop drops every message. Used when no SMS credentials are configured.
type Noop struct{}

func (Noop) Send(ctx context.Context, phone, message string) error { return nil }
