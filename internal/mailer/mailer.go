// Package mailer sends account emails through an HTTP mail relay.
// Sends are best-effort: a failure is logged and never propagated into the
// mutation that triggered it.
package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Message is the relay payload for account notification emails.
type Message struct {
	To                string `json:"to"`
	From              string `json:"from"`
	Template          string `json:"template"` // registration | password-reset
	UserName          string `json:"userName"`
	UserRole          string `json:"userRole"`
	CustomerName      string `json:"customerName"`
	TempPassword      string `json:"tempPassword"`
	LoginURL          string `json:"loginUrl"`
	Username          string `json:"username"`
	ProviderGroupName string `json:"providerGroupName,omitempty"`
}

type Mailer interface {
	Send(msg *Message) error
}

type Client struct {
	relayURL string
	apiKey   string
	from     string
	http     *http.Client
}

func NewClient(relayURL, apiKey, from string) *Client {
	return &Client{
		relayURL: relayURL,
		apiKey:   apiKey,
		from:     from,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Send(msg *Message) error {
	if c.relayURL == "" {
		return fmt.Errorf("mail relay not configured")
	}
	msg.From = c.from

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal mail payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.relayURL+"/send", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call mail relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail relay error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// SendBestEffort logs a failed send instead of returning it. Mutations
// that already committed never roll back because an email bounced.
func SendBestEffort(m Mailer, msg *Message) {
	if err := m.Send(msg); err != nil {
		slog.Error("email send failed", "to", msg.To, "template", msg.Template, "error", err)
	}
}
