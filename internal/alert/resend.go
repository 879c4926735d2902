package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultResendURL is the Resend email API endpoint.
const DefaultResendURL = "https://api.resend.com/emails"

// ResendSender delivers alerts as email through the Resend HTTP API.
type ResendSender struct {
	APIKey string
	From   string
	To     []string
	URL    string
	Client *http.Client
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send posts one email.
func (s *ResendSender) Send(ctx context.Context, subject, body string) error {
	url := s.URL
	if url == "" {
		url = DefaultResendURL
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	payload, err := json.Marshal(resendRequest{
		From:    s.From,
		To:      s.To,
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend API status %s: %s", resp.Status, detail)
	}
	return nil
}
