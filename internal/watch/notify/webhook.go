package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 512

type webhookPayload struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// WebhookClient delivers messages to Discord-compatible webhooks.
type WebhookClient struct {
	client *http.Client
}

var _ Deliverer = (*WebhookClient)(nil)

func NewWebhookClient() *WebhookClient {
	return NewWebhookClientWithHTTP(http.DefaultClient)
}

func NewWebhookClientWithHTTP(client *http.Client) *WebhookClient {
	return &WebhookClient{client: client}
}

// Deliver posts the message to endpoint. Any transport error or
// non-2xx response is returned as a *DeliveryError.
func (c *WebhookClient) Deliver(ctx context.Context, endpoint, sender, message string) error {
	body, err := json.Marshal(webhookPayload{
		Username: sender,
		Content:  message,
	})
	if err != nil {
		return &DeliveryError{Endpoint: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Endpoint: endpoint, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return &DeliveryError{Endpoint: endpoint, Err: err}
	}

	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &DeliveryError{
			Endpoint:   endpoint,
			StatusCode: res.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(detail))),
		}
	}

	// drain the body so the connection can be reused
	_, _ = io.Copy(io.Discard, res.Body)

	return nil
}
