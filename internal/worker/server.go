package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botqueue/internal/config"
	"botqueue/internal/domain"
	"botqueue/internal/handlers"
	"botqueue/internal/infra/redisq"
	"botqueue/internal/inventory"
	"botqueue/internal/ports"
	"botqueue/internal/queue"
	"botqueue/internal/store"
	"botqueue/internal/template"
	"botqueue/internal/transport"
	"botqueue/internal/webhook"
	"botqueue/pkg/backoff"

	"github.com/rs/zerolog/log"
)

type Config struct {
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Run starts the scheduler and one worker pool per queue class, then
// blocks until SIGINT/SIGTERM. In-flight jobs finish before exit.
func Run(cfg Config) error {
	appCfg := config.Load()
	cli := redisq.New(appCfg.Redis)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Connect(ctx); err != nil {
		return err
	}

	sched := redisq.NewScheduler(cli, 1*time.Second)
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Ctx(ctx).Error().Err(err).Msg("scheduler stopped with error")
		}
	}()

	policy := backoff.Policy{Kind: backoff.Exponential, Base: appCfg.Queue.BackoffBase, Cap: appCfg.Queue.BackoffCap}
	if cfg.BaseBackoff > 0 {
		policy.Base = cfg.BaseBackoff
	}
	if cfg.MaxBackoff > 0 {
		policy.Cap = cfg.MaxBackoff
	}

	jobs := queue.NewManager(cli, appCfg.Queue.DefaultMaxAttempts)
	sign := webhook.SignerFor(appCfg.Webhook.Secrets)
	registry := Handlers(appCfg, jobs, transport.LogSender{}, inventory.NewMemory(), sign)

	pools := make([]*Pool, 0, len(registry))
	for class, handle := range registry {
		p := &Pool{
			Q:           cli,
			Class:       class,
			Handle:      handle,
			Concurrency: appCfg.Queue.Concurrency(class),
			Policy:      policy,
			ClaimBlock:  appCfg.Queue.ClaimBlock,
		}
		p.Start(ctx)
		pools = append(pools, p)
		log.Info().Str("queue", string(class)).Int("concurrency", appCfg.Queue.Concurrency(class)).Msg("worker pool started")
	}

	<-ctx.Done()
	for _, p := range pools {
		p.Wait()
	}
	log.Info().Msg("worker stopped")
	return nil
}

// Handlers builds the per-class handler registry. The transport,
// inventory and signer are injectable so hosts can supply real
// collaborators.
func Handlers(cfg *config.Config, jobs *queue.Manager, tr ports.Transport, inv ports.Inventory, sign handlers.Signer) map[domain.QueueClass]Handler {
	templates := template.NewRegistry()
	ledger := store.New()

	media := &handlers.MediaProcessor{BaseDir: cfg.Media.UploadDir, Quality: cfg.Media.Quality}
	message := &handlers.MessageSender{Transport: tr, Templates: templates}
	order := &handlers.OrderProcessor{Inventory: inv, Ledger: ledger, Jobs: jobs}
	deliverer := handlers.NewWebhookDeliverer(cfg.Webhook.UserAgent, cfg.Webhook.DeliveryTimeout, sign)

	return map[domain.QueueClass]Handler{
		domain.QueueMediaProcessing: media.Handle,
		domain.QueueMessageSending:  message.Handle,
		domain.QueueOrderProcessing: order.Handle,
		domain.QueueWebhookDelivery: deliverer.Handle,
	}
}
