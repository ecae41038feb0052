package redisq

import (
	"context"
	"strconv"
	"time"

	"botqueue/internal/domain"
	"botqueue/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ ports.Scheduler = (*Scheduler)(nil)

// Scheduler promotes due delayed jobs into the ready set for every
// queue class. Several worker processes may each run one: promotion is
// gated on winning the ZRem of the delayed entry, so exactly one
// scheduler moves any given job.
type Scheduler struct {
	C        *Client
	Interval time.Duration
}

func NewScheduler(c *Client, interval time.Duration) *Scheduler {
	return &Scheduler{C: c, Interval: interval}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		for _, class := range domain.QueueClasses() {
			if err := s.moveDue(ctx, class); err != nil {
				log.Ctx(ctx).Error().Err(err).Str("queue", string(class)).Msg("promote delayed jobs")
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) moveDue(ctx context.Context, class domain.QueueClass) error {
	now := float64(time.Now().UnixMilli())
	ids, err := s.C.Rdb.ZRangeByScore(ctx, s.C.delayedKey(class), &redis.ZRangeBy{
		Min:    "-inf",
		Max:    strconv.FormatFloat(now, 'f', -1, 64),
		Offset: 0,
		Count:  128,
	}).Result()
	if err != nil || len(ids) == 0 {
		return err
	}

	for _, id := range ids {
		if err := s.promote(ctx, class, id); err != nil {
			return err
		}
	}
	return nil
}

// promote moves one due job into the ready set. Removing the delayed
// entry first is the claim: a scheduler whose ZRem returns 0 lost the
// id to a peer (or to a worker that already took the job) and must not
// touch it, or it would re-expose an active job.
func (s *Scheduler) promote(ctx context.Context, class domain.QueueClass, id string) error {
	removed, err := s.C.Rdb.ZRem(ctx, s.C.delayedKey(class), id).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return nil
	}

	h, err := s.C.Rdb.HGetAll(ctx, s.C.jobKey(class, id)).Result()
	if err != nil {
		return err
	}
	if len(h) == 0 {
		return nil
	}

	priority, _ := strconv.Atoi(h["priority"])
	seq, _ := strconv.ParseInt(h["seq"], 10, 64)

	pipe := s.C.Rdb.TxPipeline()
	pipe.HSet(ctx, s.C.jobKey(class, id), "state", string(domain.StateWaiting))
	pipe.ZAdd(ctx, s.C.readyKey(class), redis.Z{
		Score:  orderScore(priority, seq),
		Member: id,
	})
	_, err = pipe.Exec(ctx)
	return err
}
