// Package smsclient is a thin client for the SMS gateway used to confirm
// reservations. The gateway contract is a single JSON POST; delivery
// mechanics (routing, retries inside the gateway, delivery receipts) are the
// gateway's problem, not ours.
package smsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ummahtools/eventroster/pkg/db"
)

const defaultTimeout = 10 * time.Second

// Client sends SMS messages through an HTTP gateway
type Client struct {
	baseURL    string
	apiKey     string
	sender     string
	httpClient *http.Client
}

// NewClient creates a gateway client. sender is the originating number or
// alphanumeric sender id shown to recipients.
func NewClient(baseURL, apiKey, sender string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		sender:  sender,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// Notify sends one message to one E.164 phone number. Timeouts surface as
// db.ErrUnavailable so callers can distinguish a retryable gateway outage
// from a rejected request.
func (c *Client) Notify(ctx context.Context, phone, message string) error {
	payload, err := json.Marshal(sendRequest{
		From: c.sender,
		To:   phone,
		Body: message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return fmt.Errorf("sms gateway timed out: %w", db.ErrUnavailable)
		}
		return fmt.Errorf("failed to reach sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway rejected message: status %d: %s", resp.StatusCode, body)
	}

	return nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
