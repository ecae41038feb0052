package redisq

import (
	"context"
	"os"
	"testing"
	"time"

	"botqueue/internal/config"
	"botqueue/internal/domain"

	"github.com/google/uuid"
)

// These tests need a running Redis; set REDIS_ADDR to enable them.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis integration test")
	}
	cli := New(config.Redis{Addr: addr, KeyPrefix: "botqtest-" + uuid.NewString()[:8]})
	if err := cli.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return cli
}

func TestEnqueueClaimComplete(t *testing.T) {
	cli := testClient(t)
	ctx := context.Background()

	id, err := cli.Enqueue(ctx, domain.Job{
		ID:          "it-1",
		Queue:       domain.QueueMessageSending,
		Payload:     []byte(`{"recipient_id":"c-1"}`),
		Priority:    5,
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	j, err := cli.Claim(ctx, domain.QueueMessageSending, time.Second)
	if err != nil || j == nil {
		t.Fatalf("claim: %v %v", j, err)
	}
	if j.ID != id || j.State != domain.StateActive {
		t.Errorf("claimed = %+v", j)
	}

	if err := cli.Complete(ctx, *j); err != nil {
		t.Fatalf("complete: %v", err)
	}

	stats, err := cli.Stats(ctx, domain.QueueMessageSending)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Completed != 1 || stats.Active != 0 || stats.Waiting != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPriorityClaimOrder(t *testing.T) {
	cli := testClient(t)
	ctx := context.Background()

	low, _ := cli.Enqueue(ctx, domain.Job{ID: "low", Queue: domain.QueueOrderProcessing, Priority: 5, MaxAttempts: 3})
	high, _ := cli.Enqueue(ctx, domain.Job{ID: "high", Queue: domain.QueueOrderProcessing, Priority: 10, MaxAttempts: 3})

	first, _ := cli.Claim(ctx, domain.QueueOrderProcessing, time.Second)
	second, _ := cli.Claim(ctx, domain.QueueOrderProcessing, time.Second)
	if first == nil || second == nil {
		t.Fatal("claims failed")
	}
	if first.ID != high || second.ID != low {
		t.Errorf("claim order %s,%s want %s,%s", first.ID, second.ID, high, low)
	}
}

func TestIdempotentEnqueueCoalesces(t *testing.T) {
	cli := testClient(t)
	ctx := context.Background()

	a, _ := cli.Enqueue(ctx, domain.Job{ID: "order-1", Queue: domain.QueueOrderProcessing, MaxAttempts: 3})
	b, _ := cli.Enqueue(ctx, domain.Job{ID: "order-1", Queue: domain.QueueOrderProcessing, MaxAttempts: 3})
	if a != b {
		t.Fatalf("ids differ: %s %s", a, b)
	}

	stats, _ := cli.Stats(ctx, domain.QueueOrderProcessing)
	if stats.Waiting != 1 {
		t.Errorf("waiting = %d, want 1", stats.Waiting)
	}
}

func TestDelayedPromotion(t *testing.T) {
	cli := testClient(t)
	ctx := context.Background()

	_, err := cli.Enqueue(ctx, domain.Job{
		ID:          "later",
		Queue:       domain.QueueWebhookDelivery,
		MaxAttempts: 3,
		DelayUntil:  time.Now().Add(200 * time.Millisecond),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if j, _ := cli.Claim(ctx, domain.QueueWebhookDelivery, 50*time.Millisecond); j != nil {
		t.Fatal("delayed job claimed early")
	}

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go NewScheduler(cli, 50*time.Millisecond).Run(sctx)

	j, err := cli.Claim(ctx, domain.QueueWebhookDelivery, 3*time.Second)
	if err != nil || j == nil {
		t.Fatalf("delayed job never promoted: %v %v", j, err)
	}
}

func TestPromotionRacesToOneWinner(t *testing.T) {
	cli := testClient(t)
	ctx := context.Background()
	sched := NewScheduler(cli, time.Minute)

	id, _ := cli.Enqueue(ctx, domain.Job{
		ID:          "due-1",
		Queue:       domain.QueueOrderProcessing,
		MaxAttempts: 3,
		DelayUntil:  time.Now().Add(-time.Second),
	})

	// first scheduler wins the removal and promotes
	if err := sched.promote(ctx, domain.QueueOrderProcessing, id); err != nil {
		t.Fatalf("promote: %v", err)
	}
	j, err := cli.Claim(ctx, domain.QueueOrderProcessing, time.Second)
	if err != nil || j == nil || j.State != domain.StateActive {
		t.Fatalf("claim after promotion: %v %v", j, err)
	}

	// a peer scheduler that read the same due id before the promotion
	// must lose the ZRem and leave the now-active job alone
	if err := sched.promote(ctx, domain.QueueOrderProcessing, id); err != nil {
		t.Fatalf("second promote: %v", err)
	}
	if dup, _ := cli.Claim(ctx, domain.QueueOrderProcessing, 100*time.Millisecond); dup != nil {
		t.Fatalf("active job re-exposed as claimable: %+v", dup)
	}
	got, _ := cli.Get(ctx, domain.QueueOrderProcessing, id)
	if got.State != domain.StateActive {
		t.Errorf("state = %s, want active untouched", got.State)
	}
}

func TestFailRetainsReason(t *testing.T) {
	cli := testClient(t)
	ctx := context.Background()

	cli.Enqueue(ctx, domain.Job{ID: "f1", Queue: domain.QueueWebhookDelivery, MaxAttempts: 3})
	j, _ := cli.Claim(ctx, domain.QueueWebhookDelivery, time.Second)
	j.Attempts = 3
	if err := cli.Fail(ctx, *j, "target returned 500"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	got, _ := cli.Get(ctx, domain.QueueWebhookDelivery, "f1")
	if got.State != domain.StateFailed || got.FailureReason != "target returned 500" {
		t.Errorf("failed job = %+v", got)
	}

	stats, _ := cli.Stats(ctx, domain.QueueWebhookDelivery)
	if stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
