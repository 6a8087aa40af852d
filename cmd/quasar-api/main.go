// Package main provides the automations REST API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/quasarerp/automations/pkg/cmd"
	"github.com/quasarerp/automations/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	root := &cli.Command{
		Name:                  "quasar-api",
		Usage:                 "Design, deploy and inspect sales automations",
		EnableShellCompletion: true,
		Flags: append(cmd.CommonFlags(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("quasar-api")
			logger.InfoContext(ctx, "Initializing automations API")

			stack, err := cmd.NewStack(ctx, command, "quasar-api", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := stack.Close(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close stack", "error", err)
				}
			}()

			// The in-memory bus only reaches subscribers in this process.
			if command.String("event-bus") == cmd.EventBusGoChannel {
				go func() {
					err := cmd.RunWorker(ctx, stack, command.String("sweep-cron"), logger.With("module", "worker"))
					if err != nil {
						logger.ErrorContext(ctx, "Embedded worker stopped", "error", err)
					}
				}()
			}

			return NewAPI(logger, stack).Start(ctx, command.Int("port"))
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
