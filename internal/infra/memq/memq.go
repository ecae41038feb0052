package memq

import (
	"context"
	"sync"
	"time"

	"botqueue/internal/domain"
	"botqueue/internal/ports"

	"github.com/google/uuid"
)

var _ ports.Queue = (*Queue)(nil)

// Queue is a process-local ports.Queue. It backs the test suite and
// broker-less development runs; claim ordering and state transitions
// match the Redis implementation. Due delayed jobs are promoted on
// claim, so no separate scheduler is needed.
type Queue struct {
	mu     sync.Mutex
	queues map[domain.QueueClass]*class
}

type class struct {
	jobs      map[string]*domain.Job
	seq       map[string]int64
	nextSeq   int64
	completed int64
	notify    chan struct{}
}

func New() *Queue {
	q := &Queue{queues: make(map[domain.QueueClass]*class)}
	for _, c := range domain.QueueClasses() {
		q.queues[c] = &class{
			jobs:   make(map[string]*domain.Job),
			seq:    make(map[string]int64),
			notify: make(chan struct{}, 1),
		}
	}
	return q
}

func (q *Queue) class(c domain.QueueClass) (*class, error) {
	cl, ok := q.queues[c]
	if !ok {
		return nil, domain.ErrUnknownQueue
	}
	return cl, nil
}

func (q *Queue) Enqueue(ctx context.Context, j domain.Job) (string, error) {
	cl, err := q.class(j.Queue)
	if err != nil {
		return "", err
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := cl.jobs[j.ID]; ok && !existing.State.Terminal() {
		return existing.ID, nil
	}

	if j.DelayUntil.After(time.Now()) {
		j.State = domain.StateDelayed
	} else {
		j.State = domain.StateWaiting
	}
	j.Attempts = 0
	j.FailureReason = ""

	cl.nextSeq++
	cl.seq[j.ID] = cl.nextSeq
	cp := j
	cl.jobs[j.ID] = &cp
	cl.ping()
	return j.ID, nil
}

// Claim pops the best eligible job under one lock acquisition, which
// keeps the at-most-one-active invariant.
func (q *Queue) Claim(ctx context.Context, c domain.QueueClass, block time.Duration) (*domain.Job, error) {
	cl, err := q.class(c)
	if err != nil {
		return nil, err
	}

	deadline := time.NewTimer(block)
	defer deadline.Stop()

	for {
		if j := q.pop(cl); j != nil {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-cl.notify:
		case <-time.After(10 * time.Millisecond):
			// re-check for delayed jobs coming due
		}
	}
}

func (q *Queue) pop(cl *class) *domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var best *domain.Job
	for _, j := range cl.jobs {
		switch j.State {
		case domain.StateWaiting:
		case domain.StateDelayed:
			if j.DelayUntil.After(now) {
				continue
			}
			j.State = domain.StateWaiting
		default:
			continue
		}
		if best == nil || claimBefore(j, best, cl.seq) {
			best = j
		}
	}
	if best == nil {
		return nil
	}
	best.State = domain.StateActive
	cp := *best
	return &cp
}

// claimBefore orders by priority desc, then enqueue order.
func claimBefore(a, b *domain.Job, seq map[string]int64) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return seq[a.ID] < seq[b.ID]
}

func (q *Queue) Complete(ctx context.Context, j domain.Job) error {
	cl, err := q.class(j.Queue)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(cl.jobs, j.ID)
	delete(cl.seq, j.ID)
	cl.completed++
	return nil
}

func (q *Queue) Retry(ctx context.Context, j domain.Job, runAt time.Time) error {
	cl, err := q.class(j.Queue)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	cur, ok := cl.jobs[j.ID]
	if !ok {
		return domain.ErrJobNotFound
	}
	cur.State = domain.StateDelayed
	cur.Attempts = j.Attempts
	cur.DelayUntil = runAt
	cl.ping()
	return nil
}

func (q *Queue) Fail(ctx context.Context, j domain.Job, reason string) error {
	cl, err := q.class(j.Queue)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	cur, ok := cl.jobs[j.ID]
	if !ok {
		return domain.ErrJobNotFound
	}
	cur.State = domain.StateFailed
	cur.Attempts = j.Attempts
	cur.FailureReason = reason
	return nil
}

func (q *Queue) Get(ctx context.Context, c domain.QueueClass, id string) (*domain.Job, error) {
	cl, err := q.class(c)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := cl.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (q *Queue) Stats(ctx context.Context, c domain.QueueClass) (domain.QueueStats, error) {
	cl, err := q.class(c)
	if err != nil {
		return domain.QueueStats{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	s := domain.QueueStats{Completed: cl.completed}
	for _, j := range cl.jobs {
		switch j.State {
		case domain.StateWaiting:
			s.Waiting++
		case domain.StateDelayed:
			s.Delayed++
		case domain.StateActive:
			s.Active++
		case domain.StateFailed:
			s.Failed++
		}
	}
	return s, nil
}

func (cl *class) ping() {
	select {
	case cl.notify <- struct{}{}:
	default:
	}
}
