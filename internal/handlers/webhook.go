package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"botqueue/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// WebhookPayload is the webhook_delivery job input. Body is the JSON
// document POSTed to URL.
type WebhookPayload struct {
	URL        string `json:"url"`
	EventType  string `json:"event_type"`
	MerchantID string `json:"merchant_id"`
	Body       any    `json:"body"`
	Signature  string `json:"signature,omitempty"`
}

// Signer produces the HMAC signature for an outbound body when the
// job did not carry one. Returns false when no secret is on file.
type Signer func(merchantID string, body []byte) (string, bool)

// WebhookDeliverer POSTs signed event payloads to subscriber URLs.
// Any non-2xx response or transport error is retryable.
type WebhookDeliverer struct {
	Client *resty.Client
	Sign   Signer
}

// NewWebhookDeliverer builds the resty client with the fixed delivery
// timeout and user agent. Retries are owned by the job queue, not the
// HTTP client.
func NewWebhookDeliverer(userAgent string, timeout time.Duration, sign Signer) *WebhookDeliverer {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetRetryCount(0)
	return &WebhookDeliverer{Client: client, Sign: sign}
}

func (d *WebhookDeliverer) Handle(ctx context.Context, j domain.Job) error {
	var payload WebhookPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return domain.Permanent(fmt.Errorf("decode webhook payload: %w", err))
	}
	if payload.URL == "" {
		return domain.Permanent(errors.New("webhook payload missing url"))
	}

	body, err := json.Marshal(payload.Body)
	if err != nil {
		return domain.Permanent(fmt.Errorf("marshal webhook body: %w", err))
	}

	signature := payload.Signature
	if signature == "" && d.Sign != nil {
		signature, _ = d.Sign(payload.MerchantID, body)
	}

	resp, err := d.Client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Webhook-Signature", signature).
		SetHeader("X-Event-Type", payload.EventType).
		SetBody(body).
		Post(payload.URL)
	if err != nil {
		return fmt.Errorf("post %s: %w", payload.URL, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("post %s: status %d", payload.URL, resp.StatusCode())
	}

	log.Ctx(ctx).Debug().
		Str("url", payload.URL).
		Int("status", resp.StatusCode()).
		Msg("webhook delivered")
	return nil
}
