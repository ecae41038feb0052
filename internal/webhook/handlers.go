package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"botqueue/internal/domain"
	"botqueue/internal/queue"

	"github.com/rs/zerolog/log"
)

// RegisterDefaults wires the typed event handlers that bridge the
// router into the job queue. Types with no follow-up work are only
// published to subscribers and need no handler here.
func RegisterDefaults(r *Router, jobs *queue.Manager) {
	r.On(domain.EventOrderCreated, orderCreated(jobs))
	r.On(domain.EventOrderStatusChanged, orderStatusChanged(jobs))
	r.On(domain.EventPaymentReceived, paymentReceived(jobs))
	r.On(domain.EventDeliveryStarted, deliveryUpdate(jobs, "started"))
	r.On(domain.EventDeliveryCompleted, deliveryUpdate(jobs, "completed"))
	r.On(domain.EventBotDisconnected, botDisconnected)
}

// orderCreated is the main enqueue boundary: a verified order event
// becomes an order_processing job keyed by the order id, so the same
// event delivered twice cannot spawn two jobs.
func orderCreated(jobs *queue.Manager) EventHandler {
	return func(ctx context.Context, ev domain.WebhookEvent) error {
		var body struct {
			OrderID string `json:"order_id"`
		}
		if err := json.Unmarshal(ev.Payload, &body); err != nil {
			return fmt.Errorf("decode order_created: %w", err)
		}
		if body.OrderID == "" {
			return fmt.Errorf("order_created without order_id")
		}

		var payload map[string]any
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return err
		}
		payload["merchant_id"] = ev.MerchantID

		_, err := jobs.Enqueue(ctx, domain.QueueOrderProcessing, payload, queue.Options{
			ID: "order-" + body.OrderID,
		})
		return err
	}
}

func orderStatusChanged(jobs *queue.Manager) EventHandler {
	return func(ctx context.Context, ev domain.WebhookEvent) error {
		var body struct {
			OrderID    string `json:"order_id"`
			CustomerID string `json:"customer_id"`
			OldStatus  string `json:"old_status"`
			NewStatus  string `json:"new_status"`
		}
		if err := json.Unmarshal(ev.Payload, &body); err != nil {
			return fmt.Errorf("decode order_status_changed: %w", err)
		}
		if body.CustomerID == "" {
			return nil
		}

		_, err := jobs.Enqueue(ctx, domain.QueueMessageSending, map[string]any{
			"recipient_id": body.CustomerID,
			"template_id":  "order_status",
			"variables": map[string]string{
				"order_id":   body.OrderID,
				"old_status": body.OldStatus,
				"new_status": body.NewStatus,
			},
		}, queue.Options{ID: "status-" + body.OrderID + "-" + body.NewStatus})
		return err
	}
}

func paymentReceived(jobs *queue.Manager) EventHandler {
	return func(ctx context.Context, ev domain.WebhookEvent) error {
		var body struct {
			OrderID       string  `json:"order_id"`
			CustomerID    string  `json:"customer_id"`
			Amount        float64 `json:"amount"`
			TransactionID string  `json:"transaction_id"`
		}
		if err := json.Unmarshal(ev.Payload, &body); err != nil {
			return fmt.Errorf("decode payment_received: %w", err)
		}
		if body.CustomerID == "" {
			return nil
		}

		_, err := jobs.Enqueue(ctx, domain.QueueMessageSending, map[string]any{
			"recipient_id": body.CustomerID,
			"template_id":  "payment_received",
			"variables": map[string]string{
				"order_id": body.OrderID,
				"amount":   strconv.FormatFloat(body.Amount, 'f', 2, 64),
			},
		}, queue.Options{ID: "payment-" + body.TransactionID})
		return err
	}
}

func deliveryUpdate(jobs *queue.Manager, status string) EventHandler {
	return func(ctx context.Context, ev domain.WebhookEvent) error {
		var body struct {
			OrderID        string `json:"order_id"`
			CustomerID     string `json:"customer_id"`
			DeliveryTaskID string `json:"delivery_task_id"`
		}
		if err := json.Unmarshal(ev.Payload, &body); err != nil {
			return fmt.Errorf("decode delivery event: %w", err)
		}
		if body.CustomerID == "" {
			return nil
		}

		_, err := jobs.Enqueue(ctx, domain.QueueMessageSending, map[string]any{
			"recipient_id": body.CustomerID,
			"template_id":  "delivery_update",
			"variables": map[string]string{
				"order_id": body.OrderID,
				"status":   status,
			},
		}, queue.Options{ID: "delivery-" + body.DeliveryTaskID + "-" + status})
		return err
	}
}

func botDisconnected(ctx context.Context, ev domain.WebhookEvent) error {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.Unmarshal(ev.Payload, &body)
	log.Ctx(ctx).Warn().
		Str("merchant", ev.MerchantID).
		Str("reason", body.Reason).
		Msg("bot disconnected")
	return nil
}
