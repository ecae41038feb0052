package worker

import (
	"context"
	"sync"
	"time"

	"botqueue/internal/domain"
	"botqueue/internal/ports"
	"botqueue/pkg/backoff"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handler executes one job. Returning nil completes the job; an error
// schedules a retry unless it is wrapped with domain.Permanent or the
// attempt budget is spent.
type Handler func(ctx context.Context, j domain.Job) error

// Pool runs a fixed number of consumers for one queue class. Pools
// are independent across classes, so a slow media job cannot starve
// message sending.
//
// There is no per-job wall-clock timeout: a hung handler occupies its
// slot until it returns. Handlers own the timeouts of their external
// calls.
type Pool struct {
	Q           ports.Queue
	Class       domain.QueueClass
	Handle      Handler
	Concurrency int
	Policy      backoff.Policy
	ClaimBlock  time.Duration

	wg sync.WaitGroup
}

// Start launches the consumer goroutines. They exit when ctx is
// cancelled; Wait blocks until in-flight jobs have been reported.
func (p *Pool) Start(ctx context.Context) {
	n := p.Concurrency
	if n <= 0 {
		n = 1
	}
	block := p.ClaimBlock
	if block <= 0 {
		block = 5 * time.Second
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.consume(ctx, id, block)
		}(i)
	}
}

func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) consume(ctx context.Context, id int, block time.Duration) {
	logger := log.With().Str("queue", string(p.Class)).Int("consumer", id).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		j, err := p.Q.Claim(ctx, p.Class, block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("claim failed")
			time.Sleep(time.Second)
			continue
		}
		if j == nil {
			continue
		}

		p.execute(ctx, logger, *j)
	}
}

func (p *Pool) execute(ctx context.Context, logger zerolog.Logger, j domain.Job) {
	j.Attempts++

	err := p.Handle(ctx, j)

	// Outcome updates must land even when ctx was cancelled mid-job,
	// otherwise a shutdown strands the job in the active set.
	report := context.WithoutCancel(ctx)

	if err == nil {
		if cErr := p.Q.Complete(report, j); cErr != nil {
			logger.Error().Err(cErr).Str("job", j.ID).Msg("complete failed")
		}
		logger.Debug().Str("job", j.ID).Int("attempts", j.Attempts).Msg("job completed")
		return
	}

	if domain.IsPermanent(err) || j.Attempts >= j.MaxAttempts {
		if fErr := p.Q.Fail(report, j, err.Error()); fErr != nil {
			logger.Error().Err(fErr).Str("job", j.ID).Msg("fail update failed")
		}
		logger.Error().Err(err).Str("job", j.ID).Int("attempts", j.Attempts).Msg("job failed")
		return
	}

	delay := p.Policy.Delay(j.Attempts)
	runAt := time.Now().Add(delay)
	if rErr := p.Q.Retry(report, j, runAt); rErr != nil {
		logger.Error().Err(rErr).Str("job", j.ID).Msg("retry update failed")
	}
	logger.Warn().Err(err).Str("job", j.ID).Int("attempts", j.Attempts).Dur("backoff", delay).Msg("job retried")
}
