package cmd

import (
	"botqueue/internal/api"
	"botqueue/internal/config"
	"botqueue/internal/infra/redisq"
	"botqueue/internal/queue"
	"botqueue/internal/webhook"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func apiCmd() *cobra.Command {
	var port int
	var command = &cobra.Command{
		Use:   "api",
		Short: "Start API server",
		Run: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			cfg := config.Load()

			cli := redisq.New(cfg.Redis)
			if err := cli.Connect(cmd.Context()); err != nil {
				log.Fatal().Err(err).Msg("redis unavailable")
			}

			jobs := queue.NewManager(cli, cfg.Queue.DefaultMaxAttempts)
			hooks := webhook.NewRouter(cfg.Webhook.HistoryCapacity)
			webhook.RegisterDefaults(hooks, jobs)
			for merchant, secret := range cfg.Webhook.Secrets {
				hooks.RegisterSecret(merchant, secret)
			}

			log.Info().Msgf("API server using redis at %s, key prefix %s", cfg.Redis.Addr, cfg.Redis.KeyPrefix)
			server := api.NewServer(jobs, hooks)
			server.Run(port)
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the server on")
	return command
}
