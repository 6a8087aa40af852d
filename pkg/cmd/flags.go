package cmd

import (
	"github.com/quasarerp/automations/pkg/services"
	cli "github.com/urfave/cli/v3"
)

// CommonFlags are the flags shared by the API and the worker.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (file://path or postgres://...)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   EventBusGoChannel,
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Value:   "localhost:9092",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "credential-store",
			Usage:   "Credential store (memory or redis://...)",
			Value:   "memory",
			Sources: cli.EnvVars("CREDENTIAL_STORE_URL"),
		},
		&cli.StringFlag{
			Name:     "backend-url",
			Usage:    "Base URL of the backend serving AI, mail and calendar calls",
			Required: true,
			Sources:  cli.EnvVars("BACKEND_URL"),
		},
		&cli.StringFlag{
			Name:    "fetch-proxy-url",
			Usage:   "Proxy used when a lead website cannot be fetched directly",
			Sources: cli.EnvVars("FETCH_PROXY_URL"),
		},
		&cli.StringFlag{
			Name:    "sweep-cron",
			Usage:   "Cron schedule for resuming waiting instances",
			Value:   services.DefaultSweepSchedule,
			Sources: cli.EnvVars("SWEEP_CRON"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.BoolFlag{
			Name:    "otel-enabled",
			Usage:   "Export engine traces over OTLP/HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
	}
}
