package domain

import (
	"encoding/json"
	"time"
)

// EventType is one of the fixed inbound bot event kinds.
type EventType string

const (
	EventMessageReceived    EventType = "message_received"
	EventMessageSent        EventType = "message_sent"
	EventOrderCreated       EventType = "order_created"
	EventOrderStatusChanged EventType = "order_status_changed"
	EventProductUpdated     EventType = "product_updated"
	EventPaymentReceived    EventType = "payment_received"
	EventDeliveryStarted    EventType = "delivery_started"
	EventDeliveryCompleted  EventType = "delivery_completed"
	EventBotConnected       EventType = "bot_connected"
	EventBotDisconnected    EventType = "bot_disconnected"
)

func (t EventType) Known() bool {
	switch t {
	case EventMessageReceived, EventMessageSent,
		EventOrderCreated, EventOrderStatusChanged,
		EventProductUpdated, EventPaymentReceived,
		EventDeliveryStarted, EventDeliveryCompleted,
		EventBotConnected, EventBotDisconnected:
		return true
	}
	return false
}

// WebhookEvent is a verified inbound event. It is recorded to history
// and published to subscribers at ingestion and never mutated after.
type WebhookEvent struct {
	Type       EventType       `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	MerchantID string          `json:"merchant_id"`
	Timestamp  time.Time       `json:"timestamp"`
}
