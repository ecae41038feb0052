package redisq

import (
	"context"
	"errors"
	"strconv"
	"time"

	"botqueue/internal/domain"
	"botqueue/internal/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ ports.Queue = (*Client)(nil)

func (c *Client) Enqueue(ctx context.Context, j domain.Job) (string, error) {
	if !j.Queue.Valid() {
		return "", domain.ErrUnknownQueue
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}

	jobKey := c.jobKey(j.Queue, j.ID)

	// Idempotent enqueue: HSETNX claims the record key. If the id is
	// already live the call coalesces; a completed record is gone and
	// a failed one may be enqueued anew.
	fresh, err := c.Rdb.HSetNX(ctx, jobKey, "state", string(domain.StateWaiting)).Result()
	if err != nil {
		return "", err
	}
	if !fresh {
		state, err := c.Rdb.HGet(ctx, jobKey, "state").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return "", err
		}
		if !domain.JobState(state).Terminal() {
			return j.ID, nil
		}
		_ = c.Rdb.SRem(ctx, c.failedKey(j.Queue), j.ID).Err()
	}

	seq, err := c.Rdb.Incr(ctx, c.seqKey(j.Queue)).Result()
	if err != nil {
		return "", err
	}

	delayed := j.DelayUntil.After(time.Now())
	if delayed {
		j.State = domain.StateDelayed
	} else {
		j.State = domain.StateWaiting
	}
	j.Attempts = 0
	j.FailureReason = ""

	if err := c.Rdb.HSet(ctx, jobKey, jobFields(j, seq)).Err(); err != nil {
		return "", err
	}

	if delayed {
		err = c.Rdb.ZAdd(ctx, c.delayedKey(j.Queue), redis.Z{
			Score:  float64(j.DelayUntil.UnixMilli()),
			Member: j.ID,
		}).Err()
	} else {
		err = c.Rdb.ZAdd(ctx, c.readyKey(j.Queue), redis.Z{
			Score:  orderScore(j.Priority, seq),
			Member: j.ID,
		}).Err()
	}
	if err != nil {
		return "", err
	}
	return j.ID, nil
}

// Claim pops the highest-priority ready job and marks it active.
// Returns (nil, nil) when block elapses with nothing ready.
//
// A worker that dies between the pop and its outcome report leaves the
// job in the active set with no reclaim; restoring it needs an
// operator (or a future stalled-job sweep with a claim lease).
func (c *Client) Claim(ctx context.Context, class domain.QueueClass, block time.Duration) (*domain.Job, error) {
	res, err := c.Rdb.BZPopMin(ctx, block, c.readyKey(class)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	id, ok := res.Member.(string)
	if !ok || id == "" {
		return nil, nil
	}

	j, err := c.Get(ctx, class, id)
	if err != nil {
		return nil, err
	}
	if j == nil {
		// Record vanished under the ready entry; skip it.
		return nil, nil
	}

	j.State = domain.StateActive
	pipe := c.Rdb.TxPipeline()
	pipe.HSet(ctx, c.jobKey(class, id), "state", string(domain.StateActive))
	pipe.SAdd(ctx, c.activeKey(class), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

func (c *Client) Complete(ctx context.Context, j domain.Job) error {
	pipe := c.Rdb.TxPipeline()
	pipe.SRem(ctx, c.activeKey(j.Queue), j.ID)
	pipe.Del(ctx, c.jobKey(j.Queue, j.ID))
	pipe.Incr(ctx, c.doneKey(j.Queue))
	_, err := pipe.Exec(ctx)
	return err
}

func (c *Client) Retry(ctx context.Context, j domain.Job, runAt time.Time) error {
	pipe := c.Rdb.TxPipeline()
	pipe.SRem(ctx, c.activeKey(j.Queue), j.ID)
	pipe.HSet(ctx, c.jobKey(j.Queue, j.ID), map[string]any{
		"state":          string(domain.StateDelayed),
		"attempts":       j.Attempts,
		"delay_until_ms": runAt.UnixMilli(),
	})
	pipe.ZAdd(ctx, c.delayedKey(j.Queue), redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: j.ID,
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (c *Client) Fail(ctx context.Context, j domain.Job, reason string) error {
	pipe := c.Rdb.TxPipeline()
	pipe.SRem(ctx, c.activeKey(j.Queue), j.ID)
	pipe.HSet(ctx, c.jobKey(j.Queue, j.ID), map[string]any{
		"state":          string(domain.StateFailed),
		"attempts":       j.Attempts,
		"failure_reason": reason,
	})
	pipe.SAdd(ctx, c.failedKey(j.Queue), j.ID)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *Client) Get(ctx context.Context, class domain.QueueClass, id string) (*domain.Job, error) {
	h, err := c.Rdb.HGetAll(ctx, c.jobKey(class, id)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, nil
	}
	return jobFromFields(class, id, h), nil
}

func (c *Client) Stats(ctx context.Context, class domain.QueueClass) (domain.QueueStats, error) {
	var s domain.QueueStats

	pipe := c.Rdb.Pipeline()
	waiting := pipe.ZCard(ctx, c.readyKey(class))
	delayed := pipe.ZCard(ctx, c.delayedKey(class))
	active := pipe.SCard(ctx, c.activeKey(class))
	failed := pipe.SCard(ctx, c.failedKey(class))
	done := pipe.Get(ctx, c.doneKey(class))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return s, err
	}

	s.Waiting = waiting.Val()
	s.Delayed = delayed.Val()
	s.Active = active.Val()
	s.Failed = failed.Val()
	s.Completed, _ = strconv.ParseInt(done.Val(), 10, 64)
	return s, nil
}

func jobFields(j domain.Job, seq int64) map[string]any {
	m := map[string]any{
		"id":             j.ID,
		"queue":          string(j.Queue),
		"payload":        string(j.Payload),
		"priority":       j.Priority,
		"attempts":       j.Attempts,
		"max_attempts":   j.MaxAttempts,
		"state":          string(j.State),
		"failure_reason": j.FailureReason,
		"created_at_ms":  j.CreatedAt.UnixMilli(),
		"seq":            seq,
	}
	if !j.DelayUntil.IsZero() {
		m["delay_until_ms"] = j.DelayUntil.UnixMilli()
	}
	return m
}

func jobFromFields(class domain.QueueClass, id string, h map[string]string) *domain.Job {
	j := &domain.Job{
		ID:            id,
		Queue:         class,
		Payload:       []byte(h["payload"]),
		State:         domain.JobState(h["state"]),
		FailureReason: h["failure_reason"],
	}
	j.Priority, _ = strconv.Atoi(h["priority"])
	j.Attempts, _ = strconv.Atoi(h["attempts"])
	j.MaxAttempts, _ = strconv.Atoi(h["max_attempts"])
	if ms, err := strconv.ParseInt(h["created_at_ms"], 10, 64); err == nil {
		j.CreatedAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(h["delay_until_ms"], 10, 64); err == nil && ms > 0 {
		j.DelayUntil = time.UnixMilli(ms)
	}
	return j
}
