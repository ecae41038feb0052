package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"botqueue/internal/domain"
	"botqueue/internal/ports"
	"botqueue/internal/queue"
	"botqueue/internal/store"

	"github.com/rs/zerolog/log"
)

// OrderPayload is the order_processing job input.
type OrderPayload struct {
	OrderID     string      `json:"order_id"`
	Items       []OrderItem `json:"items"`
	TotalAmount float64     `json:"total_amount"`
	CustomerID  string      `json:"customer_id"`
	MerchantID  string      `json:"merchant_id"`
	WebhookURL  string      `json:"webhook_url,omitempty"`
}

type OrderItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

const reservationTTL = 24 * time.Hour

// OrderProcessor validates stock, reserves it, confirms the order and
// fans out notification jobs. Reservations are ledgered per order and
// item in the keyed store, so a retry after partial completion never
// reserves the same item twice.
type OrderProcessor struct {
	Inventory ports.Inventory
	Ledger    *store.Store
	Jobs      *queue.Manager
}

func (p *OrderProcessor) Handle(ctx context.Context, j domain.Job) error {
	var payload OrderPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return domain.Permanent(fmt.Errorf("decode order payload: %w", err))
	}
	if payload.OrderID == "" {
		return domain.Permanent(errors.New("order payload missing order_id"))
	}
	if len(payload.Items) == 0 {
		return domain.Permanent(errors.New("order has no items"))
	}

	for _, item := range payload.Items {
		if err := p.reserveOnce(ctx, payload.OrderID, item); err != nil {
			return err
		}
	}

	total := payload.TotalAmount
	if total == 0 {
		for _, item := range payload.Items {
			total += item.Price * float64(item.Quantity)
		}
	}

	if err := p.notify(ctx, payload, total); err != nil {
		return err
	}

	log.Ctx(ctx).Info().
		Str("order", payload.OrderID).
		Str("merchant", payload.MerchantID).
		Float64("total", total).
		Msg("order confirmed")
	return nil
}

// reserveOnce reserves one line item unless a prior attempt already
// ledgered it.
func (p *OrderProcessor) reserveOnce(ctx context.Context, orderID string, item OrderItem) error {
	if item.ProductID == "" || item.Quantity <= 0 {
		return domain.Permanent(fmt.Errorf("invalid order item %+v", item))
	}

	key := "reserved:" + orderID + ":" + item.ProductID
	if _, done := p.Ledger.Get(key); done {
		return nil
	}

	have, err := p.Inventory.Available(ctx, item.ProductID)
	if err != nil {
		return fmt.Errorf("check stock %s: %w", item.ProductID, err)
	}
	if have < item.Quantity {
		return domain.Permanent(fmt.Errorf("insufficient stock for %s: have %d, want %d", item.ProductID, have, item.Quantity))
	}

	if err := p.Inventory.Reserve(ctx, orderID, item.ProductID, item.Quantity); err != nil {
		return fmt.Errorf("reserve %s: %w", item.ProductID, err)
	}
	p.Ledger.Set(key, strconv.Itoa(item.Quantity), reservationTTL)
	return nil
}

// notify enqueues the confirmation message and, when a target URL is
// known, a webhook delivery. Stable job ids make the fan-out safe to
// repeat on retry.
func (p *OrderProcessor) notify(ctx context.Context, payload OrderPayload, total float64) error {
	if payload.CustomerID != "" {
		msg := MessagePayload{
			RecipientID: payload.CustomerID,
			TemplateID:  "order_confirmed",
			Variables: map[string]string{
				"order_id": payload.OrderID,
				"total":    strconv.FormatFloat(total, 'f', 2, 64),
			},
		}
		_, err := p.Jobs.Enqueue(ctx, domain.QueueMessageSending, msg, queue.Options{
			ID: "order-confirm-" + payload.OrderID,
		})
		if err != nil {
			return fmt.Errorf("enqueue confirmation: %w", err)
		}
	}

	if payload.WebhookURL != "" {
		hook := WebhookPayload{
			URL:        payload.WebhookURL,
			EventType:  string(domain.EventOrderStatusChanged),
			MerchantID: payload.MerchantID,
			Body: map[string]any{
				"order_id": payload.OrderID,
				"status":   "confirmed",
				"total":    total,
			},
		}
		_, err := p.Jobs.Enqueue(ctx, domain.QueueWebhookDelivery, hook, queue.Options{
			ID: "order-hook-" + payload.OrderID,
		})
		if err != nil {
			return fmt.Errorf("enqueue webhook: %w", err)
		}
	}
	return nil
}
