package redisq

import (
	"context"
	"fmt"

	"botqueue/internal/config"
	"botqueue/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Client implements ports.Queue on Redis. Per queue class it keeps:
//
//	{prefix}:{class}:ready    ZSET, member=jobID, score=orderScore
//	{prefix}:{class}:delayed  ZSET, member=jobID, score=eligible-at ms
//	{prefix}:{class}:active   SET of jobIDs under execution
//	{prefix}:{class}:failed   SET of terminally failed jobIDs
//	{prefix}:{class}:job:{id} HASH, the job record
//	{prefix}:{class}:seq      enqueue sequence counter
//	{prefix}:{class}:done     completed counter (records are discarded)
//
// Claim pops from the ready ZSET, which is atomic, so no two workers
// can obtain the same job.
type Client struct {
	Cfg config.Redis
	Rdb *redis.Client
}

func New(cfg config.Redis) *Client {
	log.Info().Msgf("connecting to redis at %s", cfg.Addr)
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Client{Cfg: cfg, Rdb: c}
}

func (c *Client) Connect(ctx context.Context) error {
	if err := c.Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Ctx(ctx).Info().Msg("connected to redis")
	return nil
}

func (c *Client) key(class domain.QueueClass, parts ...string) string {
	k := c.Cfg.KeyPrefix + ":" + string(class)
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (c *Client) readyKey(class domain.QueueClass) string   { return c.key(class, "ready") }
func (c *Client) delayedKey(class domain.QueueClass) string { return c.key(class, "delayed") }
func (c *Client) activeKey(class domain.QueueClass) string  { return c.key(class, "active") }
func (c *Client) failedKey(class domain.QueueClass) string  { return c.key(class, "failed") }
func (c *Client) seqKey(class domain.QueueClass) string     { return c.key(class, "seq") }
func (c *Client) doneKey(class domain.QueueClass) string    { return c.key(class, "done") }
func (c *Client) jobKey(class domain.QueueClass, id string) string {
	return c.key(class, "job", id)
}

// orderScore encodes (priority desc, enqueue order asc) into a single
// ZSET score so ZPOPMIN yields the next job to run. Sequence numbers
// stay far below the priority stride.
func orderScore(priority int, seq int64) float64 {
	return -float64(priority)*1e12 + float64(seq)
}
