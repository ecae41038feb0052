package ports

import (
	"botqueue/internal/domain"
	"context"
	"time"
)

// Queue is the durable queue store. It is the single source of truth
// for job state; Claim must be atomic so no two consumers obtain the
// same waiting job.
type Queue interface {
	// Enqueue persists the job and makes it claimable (or delayed when
	// DelayUntil is in the future). When a job with the same id is
	// still waiting, delayed or active, the call coalesces and returns
	// the existing job's id.
	Enqueue(ctx context.Context, j domain.Job) (string, error)

	// Claim atomically pops the next eligible job of the class,
	// ordered by priority desc then enqueue order, and marks it
	// active. Returns (nil, nil) when no job becomes eligible within
	// block.
	Claim(ctx context.Context, class domain.QueueClass, block time.Duration) (*domain.Job, error)

	// Complete discards the job record and counts it as completed.
	Complete(ctx context.Context, j domain.Job) error

	// Retry returns an active job to the delayed set, eligible again
	// at runAt. The job's Attempts field is persisted as given.
	Retry(ctx context.Context, j domain.Job, runAt time.Time) error

	// Fail marks the job terminally failed and retains it, with
	// reason, for inspection.
	Fail(ctx context.Context, j domain.Job, reason string) error

	Get(ctx context.Context, class domain.QueueClass, id string) (*domain.Job, error)
	Stats(ctx context.Context, class domain.QueueClass) (domain.QueueStats, error)
}

// Scheduler promotes due delayed jobs into the claimable set.
type Scheduler interface {
	Run(ctx context.Context) error
}
