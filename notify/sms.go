package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSMSSender posts {"to","message","from"} to an SMS gateway and reads
// {"success": bool} back.
type HTTPSMSSender struct {
	URL    string
	APIKey string
	From   string
	Client *http.Client
}

func NewHTTPSMSSender(url, apiKey, from string) *HTTPSMSSender {
	return &HTTPSMSSender{URL: url, APIKey: apiKey, From: from, Client: &http.Client{Timeout: 10 * time.Second}}
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

type smsResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *HTTPSMSSender) Send(ctx context.Context, phone, message string) (bool, error) {
	body, err := json.Marshal(smsRequest{To: phone, From: s.From, Message: message})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("sms request: unexpected status %d", resp.StatusCode)
	}
	var out smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode sms response: %w", err)
	}
	return out.Success, nil
}
