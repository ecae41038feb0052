package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"botqueue/internal/domain"
	"botqueue/internal/ports"
)

// Options are per-job overrides accepted at enqueue time. A zero
// Options takes the queue defaults.
type Options struct {
	// ID makes the enqueue idempotent: while a job with this id is
	// live, re-enqueueing coalesces into it.
	ID          string
	Priority    int
	Delay       time.Duration
	MaxAttempts int
}

// JobStatus is the poll result for a submitted job.
type JobStatus struct {
	Found         bool            `json:"found"`
	State         domain.JobState `json:"state,omitempty"`
	Attempts      int             `json:"attempts"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// Manager is the producer-facing facade over the queue store. It
// applies class defaults and marshals payloads; execution is fully
// asynchronous, producers poll JobStatus for the outcome.
type Manager struct {
	q                  ports.Queue
	defaultMaxAttempts int
}

func NewManager(q ports.Queue, defaultMaxAttempts int) *Manager {
	if defaultMaxAttempts <= 0 {
		defaultMaxAttempts = 3
	}
	return &Manager{q: q, defaultMaxAttempts: defaultMaxAttempts}
}

// Enqueue persists a job and returns its id without executing it.
func (m *Manager) Enqueue(ctx context.Context, class domain.QueueClass, payload any, opts Options) (string, error) {
	if !class.Valid() {
		return "", domain.ErrUnknownQueue
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	j := domain.Job{
		ID:          opts.ID,
		Queue:       class,
		Payload:     raw,
		Priority:    opts.Priority,
		MaxAttempts: opts.MaxAttempts,
	}
	if j.Priority == 0 {
		j.Priority = defaultPriority(class)
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = m.defaultMaxAttempts
	}
	if opts.Delay > 0 {
		j.DelayUntil = time.Now().Add(opts.Delay)
	}

	return m.q.Enqueue(ctx, j)
}

func (m *Manager) JobStatus(ctx context.Context, class domain.QueueClass, id string) (JobStatus, error) {
	j, err := m.q.Get(ctx, class, id)
	if err != nil {
		return JobStatus{}, err
	}
	if j == nil {
		return JobStatus{Found: false}, nil
	}
	return JobStatus{
		Found:         true,
		State:         j.State,
		Attempts:      j.Attempts,
		FailureReason: j.FailureReason,
	}, nil
}

func (m *Manager) Stats(ctx context.Context, class domain.QueueClass) (domain.QueueStats, error) {
	return m.q.Stats(ctx, class)
}

// Order processing runs first; webhook fan-out yields to everything
// else.
func defaultPriority(class domain.QueueClass) int {
	switch class {
	case domain.QueueOrderProcessing:
		return 10
	case domain.QueueWebhookDelivery:
		return 1
	default:
		return 5
	}
}
