package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quasarerp/automations/pkg/capabilities"
	"github.com/quasarerp/automations/pkg/credentials"
	"github.com/quasarerp/automations/pkg/engine"
	"github.com/quasarerp/automations/pkg/eventbus"
	"github.com/quasarerp/automations/pkg/otelhelper"
	"github.com/quasarerp/automations/pkg/persistence"
)

// NewCapabilities builds the HTTP clients node side effects call. AI, mail and
// calendar calls go to the companion backend at backendURL.
func NewCapabilities(store credentials.Store, backendURL, proxyURL string, logger *slog.Logger) engine.Capabilities {
	return engine.Capabilities{
		Credentials: store,
		Fetcher:     capabilities.NewHTTPFetcher(proxyURL, logger),
		Completer:   capabilities.NewBackendCompleter(backendURL, logger),
		Mailer:      capabilities.NewBackendMailer(backendURL, logger),
		Calendar:    capabilities.NewBackendCalendar(backendURL, logger),
	}
}

// NewEngine creates the execution engine. With tracing enabled it installs the
// OTLP exporter; the returned func flushes it.
func NewEngine(
	ctx context.Context,
	p persistence.Persistence,
	caps engine.Capabilities,
	publisher eventbus.EventPublisher,
	serviceName string,
	tracing bool,
	logger *slog.Logger,
) (*engine.Engine, func(context.Context) error, error) {
	opts := []engine.Option{engine.WithPublisher(publisher)}
	shutdown := func(context.Context) error { return nil }

	if tracing {
		tracer, stop, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
		}

		opts = append(opts, engine.WithTracer(tracer))
		shutdown = stop
	}

	return engine.New(p, caps, logger, opts...), shutdown, nil
}
