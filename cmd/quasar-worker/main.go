// Package main provides the automations worker: it starts workflows for
// approved leads and resumes waiting instances on a schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/quasarerp/automations/pkg/cmd"
	"github.com/quasarerp/automations/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	root := &cli.Command{
		Name:                  "quasar-worker",
		Usage:                 "Run workflow instances for approved leads",
		EnableShellCompletion: true,
		Flags: append(cmd.CommonFlags(),
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Sources: cli.EnvVars("WORKER_ID"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("quasar-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing automations worker")

			stack, err := cmd.NewStack(ctx, command, "quasar-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := stack.Close(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close stack", "error", err)
				}
			}()

			return cmd.RunWorker(ctx, stack, command.String("sweep-cron"), logger)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := root.Run(ctx, os.Args)
	if err != nil {
		stop()
		panic(err)
	}
}
