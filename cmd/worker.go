package cmd

import (
	"time"

	"botqueue/internal/worker"

	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	var (
		baseBackoff time.Duration
		maxBackoff  time.Duration
	)

	var command = &cobra.Command{
		Use:   "worker",
		Short: "Start worker pools for all job queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return worker.Run(worker.Config{
				BaseBackoff: baseBackoff,
				MaxBackoff:  maxBackoff,
			})
		},
	}

	command.Flags().DurationVar(&baseBackoff, "base-backoff", 0, "Override retry backoff base duration")
	command.Flags().DurationVar(&maxBackoff, "max-backoff", 0, "Override retry backoff cap")

	return command
}
