package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"botqueue/internal/domain"
	"botqueue/internal/infra/memq"
	"botqueue/pkg/backoff"
)

func testPolicy() backoff.Policy {
	return backoff.Policy{Kind: backoff.Exponential, Base: 10 * time.Millisecond, Cap: 50 * time.Millisecond}
}

func startPool(t *testing.T, q *memq.Queue, class domain.QueueClass, h Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		Q:           q,
		Class:       class,
		Handle:      h,
		Concurrency: 1,
		Policy:      testPolicy(),
		ClaimBlock:  50 * time.Millisecond,
	}
	p.Start(ctx)
	t.Cleanup(func() {
		cancel()
		p.Wait()
	})
}

func TestJobCompletes(t *testing.T) {
	q := memq.New()
	done := make(chan domain.Job, 1)
	startPool(t, q, domain.QueueMessageSending, func(ctx context.Context, j domain.Job) error {
		done <- j
		return nil
	})

	id, err := q.Enqueue(context.Background(), domain.Job{Queue: domain.QueueMessageSending, MaxAttempts: 3})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case j := <-done:
		if j.ID != id {
			t.Errorf("handled job %s, want %s", j.ID, id)
		}
		if j.Attempts != 1 {
			t.Errorf("attempts = %d, want 1", j.Attempts)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler was not called")
	}

	waitFor(t, func() bool {
		s, _ := q.Stats(context.Background(), domain.QueueMessageSending)
		return s.Completed == 1 && s.Active == 0
	})
}

func TestRetriesUntilFailed(t *testing.T) {
	q := memq.New()
	var calls atomic.Int32
	startPool(t, q, domain.QueueWebhookDelivery, func(ctx context.Context, j domain.Job) error {
		calls.Add(1)
		return errors.New("target returned 500")
	})

	id, _ := q.Enqueue(context.Background(), domain.Job{Queue: domain.QueueWebhookDelivery, MaxAttempts: 3})

	waitFor(t, func() bool {
		j, _ := q.Get(context.Background(), domain.QueueWebhookDelivery, id)
		return j != nil && j.State == domain.StateFailed
	})

	j, _ := q.Get(context.Background(), domain.QueueWebhookDelivery, id)
	if j.Attempts != 3 {
		t.Errorf("attempts = %d, want exactly maxAttempts 3", j.Attempts)
	}
	if j.FailureReason == "" {
		t.Error("terminal failure lost its reason")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("handler ran %d times, want 3", got)
	}

	s, _ := q.Stats(context.Background(), domain.QueueWebhookDelivery)
	if s.Failed != 1 || s.Waiting != 0 || s.Active != 0 {
		t.Errorf("stats = %+v, want the job under failed only", s)
	}
}

func TestPermanentErrorSkipsRetries(t *testing.T) {
	q := memq.New()
	var calls atomic.Int32
	startPool(t, q, domain.QueueMediaProcessing, func(ctx context.Context, j domain.Job) error {
		calls.Add(1)
		return domain.Permanent(errors.New("payload missing media_id"))
	})

	id, _ := q.Enqueue(context.Background(), domain.Job{Queue: domain.QueueMediaProcessing, MaxAttempts: 5})

	waitFor(t, func() bool {
		j, _ := q.Get(context.Background(), domain.QueueMediaProcessing, id)
		return j != nil && j.State == domain.StateFailed
	})

	if got := calls.Load(); got != 1 {
		t.Errorf("permanent error retried: %d calls", got)
	}
}

func TestRetryUsesBackoffDelay(t *testing.T) {
	q := memq.New()
	var times []time.Time
	done := make(chan struct{})
	startPool(t, q, domain.QueueMessageSending, func(ctx context.Context, j domain.Job) error {
		times = append(times, time.Now())
		if len(times) < 2 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})

	q.Enqueue(context.Background(), domain.Job{Queue: domain.QueueMessageSending, MaxAttempts: 3})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job never succeeded")
	}
	if gap := times[1].Sub(times[0]); gap < 10*time.Millisecond {
		t.Errorf("retry ran after %v, before the backoff delay", gap)
	}
}

// ctxCheckedQueue rejects writes on a cancelled context, the way a
// Redis client does.
type ctxCheckedQueue struct {
	*memq.Queue
}

func (q ctxCheckedQueue) Complete(ctx context.Context, j domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.Queue.Complete(ctx, j)
}

func (q ctxCheckedQueue) Fail(ctx context.Context, j domain.Job, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.Queue.Fail(ctx, j, reason)
}

func (q ctxCheckedQueue) Retry(ctx context.Context, j domain.Job, runAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.Queue.Retry(ctx, j, runAt)
}

func TestShutdownMidJobStillRecordsOutcome(t *testing.T) {
	mq := memq.New()
	q := ctxCheckedQueue{mq}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		Q:     q,
		Class: domain.QueueMessageSending,
		Handle: func(ctx context.Context, j domain.Job) error {
			cancel() // shutdown arrives while the job is running
			return nil
		},
		Concurrency: 1,
		Policy:      testPolicy(),
		ClaimBlock:  50 * time.Millisecond,
	}

	id, _ := mq.Enqueue(context.Background(), domain.Job{Queue: domain.QueueMessageSending, MaxAttempts: 3})
	p.Start(ctx)
	p.Wait()

	j, _ := mq.Get(context.Background(), domain.QueueMessageSending, id)
	if j != nil && j.State == domain.StateActive {
		t.Fatal("job stranded active after shutdown")
	}
	s, _ := mq.Stats(context.Background(), domain.QueueMessageSending)
	if s.Completed != 1 || s.Active != 0 {
		t.Errorf("stats = %+v, want the job completed", s)
	}
}

func TestQueuesAreIndependent(t *testing.T) {
	q := memq.New()

	block := make(chan struct{})
	startPool(t, q, domain.QueueMediaProcessing, func(ctx context.Context, j domain.Job) error {
		<-block
		return nil
	})
	defer close(block)

	handled := make(chan struct{}, 1)
	startPool(t, q, domain.QueueMessageSending, func(ctx context.Context, j domain.Job) error {
		handled <- struct{}{}
		return nil
	})

	q.Enqueue(context.Background(), domain.Job{Queue: domain.QueueMediaProcessing, MaxAttempts: 3})
	q.Enqueue(context.Background(), domain.Job{Queue: domain.QueueMessageSending, MaxAttempts: 3})

	select {
	case <-handled:
	case <-time.After(3 * time.Second):
		t.Fatal("a stuck media job starved message sending")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
