package domain

import (
	"encoding/json"
	"time"
)

// QueueClass names one of the fixed job queues. Each class has its own
// worker pool, concurrency limit and retry policy.
type QueueClass string

const (
	QueueMediaProcessing QueueClass = "media_processing"
	QueueMessageSending  QueueClass = "message_sending"
	QueueOrderProcessing QueueClass = "order_processing"
	QueueWebhookDelivery QueueClass = "webhook_delivery"
)

// QueueClasses returns all known queue classes in a stable order.
func QueueClasses() []QueueClass {
	return []QueueClass{
		QueueMediaProcessing,
		QueueMessageSending,
		QueueOrderProcessing,
		QueueWebhookDelivery,
	}
}

func (c QueueClass) Valid() bool {
	switch c {
	case QueueMediaProcessing, QueueMessageSending, QueueOrderProcessing, QueueWebhookDelivery:
		return true
	}
	return false
}

type JobState string

const (
	StateWaiting   JobState = "waiting"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateDelayed   JobState = "delayed"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is the unit of deferred work. A job moves
// waiting -> active -> completed, or back to delayed for a retry,
// or to failed once attempts reach MaxAttempts.
type Job struct {
	ID            string          `json:"id"`
	Queue         QueueClass      `json:"queue"`
	Payload       json.RawMessage `json:"payload"`
	Priority      int             `json:"priority"`
	DelayUntil    time.Time       `json:"delay_until,omitzero"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	State         JobState        `json:"state"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// QueueStats is a point-in-time count of jobs per state in one queue.
// Completed is a running counter; completed job records are discarded.
type QueueStats struct {
	Active    int64 `json:"active"`
	Waiting   int64 `json:"waiting"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`
}
