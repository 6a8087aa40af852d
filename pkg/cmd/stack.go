// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quasarerp/automations/pkg/credentials"
	"github.com/quasarerp/automations/pkg/engine"
	"github.com/quasarerp/automations/pkg/eventbus"
	"github.com/quasarerp/automations/pkg/persistence"
	"github.com/quasarerp/automations/pkg/services"
	cli "github.com/urfave/cli/v3"
)

// Stack is everything a binary needs to serve automations.
type Stack struct {
	Persistence persistence.Persistence
	Credentials credentials.Store
	EventBus    eventbus.EventBus
	Engine      *engine.Engine
	Workflows   *services.Workflow
	Triggers    *services.TriggerListener
	Resumer     *services.Resumer

	closers []func(context.Context) error
}

// NewStack wires the stack from the CommonFlags of command.
func NewStack(ctx context.Context, command *cli.Command, serviceName string, logger *slog.Logger) (*Stack, error) {
	s := &Stack{}

	p, err := NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence: %w", err)
	}

	s.Persistence = p
	s.closers = append(s.closers, p.Close)

	store, closeStore, err := NewCredentialStore(ctx, command.String("credential-store"), logger)
	if err != nil {
		return nil, s.abort(ctx, fmt.Errorf("failed to open credential store: %w", err))
	}

	s.Credentials = store
	s.closers = append(s.closers, func(context.Context) error { return closeStore() })

	bus, err := NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), serviceName, logger)
	if err != nil {
		return nil, s.abort(ctx, err)
	}

	s.EventBus = bus
	s.closers = append(s.closers, func(context.Context) error { return bus.Close() })

	caps := NewCapabilities(store, command.String("backend-url"), command.String("fetch-proxy-url"), logger)

	e, shutdown, err := NewEngine(ctx, p, caps, bus, serviceName, command.Bool("otel-enabled"), logger)
	if err != nil {
		return nil, s.abort(ctx, err)
	}

	s.Engine = e
	s.closers = append(s.closers, shutdown)

	s.Workflows = services.NewWorkflow(p, bus, logger.With("module", "workflows"))
	s.Triggers = services.NewTriggerListener(p, e, bus, logger.With("module", "trigger_listener"))
	s.Resumer = services.NewResumer(p, e, store, logger.With("module", "resumer"))

	return s, nil
}

func (s *Stack) abort(ctx context.Context, err error) error {
	return errors.Join(err, s.Close(ctx))
}

// Close releases everything in reverse order of creation.
func (s *Stack) Close(ctx context.Context) error {
	var errs []error

	for i := len(s.closers) - 1; i >= 0; i-- {
		err := s.closers[i](ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	s.closers = nil

	return errors.Join(errs...)
}
