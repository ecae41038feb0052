package queue

import (
	"context"
	"testing"
	"time"

	"botqueue/internal/domain"
	"botqueue/internal/infra/memq"
)

func TestEnqueueAppliesDefaults(t *testing.T) {
	q := memq.New()
	m := NewManager(q, 3)
	ctx := context.Background()

	id, err := m.Enqueue(ctx, domain.QueueOrderProcessing, map[string]string{"order_id": "o-1"}, Options{ID: "order-o-1"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	j, _ := q.Get(ctx, domain.QueueOrderProcessing, id)
	if j.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want default 3", j.MaxAttempts)
	}
	if j.Priority != 10 {
		t.Errorf("order priority = %d, want 10", j.Priority)
	}

	id2, _ := m.Enqueue(ctx, domain.QueueWebhookDelivery, map[string]string{}, Options{})
	j2, _ := q.Get(ctx, domain.QueueWebhookDelivery, id2)
	if j2.Priority != 1 {
		t.Errorf("webhook priority = %d, want 1", j2.Priority)
	}
}

func TestEnqueueWithDelay(t *testing.T) {
	q := memq.New()
	m := NewManager(q, 3)
	ctx := context.Background()

	id, err := m.Enqueue(ctx, domain.QueueMessageSending, map[string]string{}, Options{Delay: time.Minute})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	j, _ := q.Get(ctx, domain.QueueMessageSending, id)
	if j.State != domain.StateDelayed {
		t.Errorf("state = %s, want delayed", j.State)
	}
	if time.Until(j.DelayUntil) < 50*time.Second {
		t.Errorf("delay_until = %v, want about a minute out", j.DelayUntil)
	}
}

func TestEnqueueUnknownQueue(t *testing.T) {
	m := NewManager(memq.New(), 3)
	if _, err := m.Enqueue(context.Background(), "bogus", nil, Options{}); err != domain.ErrUnknownQueue {
		t.Fatalf("got %v, want ErrUnknownQueue", err)
	}
}

func TestJobStatus(t *testing.T) {
	q := memq.New()
	m := NewManager(q, 3)
	ctx := context.Background()

	status, err := m.JobStatus(ctx, domain.QueueMessageSending, "missing")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Found {
		t.Error("missing job reported found")
	}

	id, _ := m.Enqueue(ctx, domain.QueueMessageSending, map[string]string{}, Options{})
	status, _ = m.JobStatus(ctx, domain.QueueMessageSending, id)
	if !status.Found || status.State != domain.StateWaiting {
		t.Errorf("status = %+v", status)
	}
}
