package cmd

import (
	"context"
	"fmt"
	"log/slog"
)

// RunWorker subscribes the trigger listener to lead approvals and sweeps
// waiting instances on schedule until ctx is cancelled.
func RunWorker(ctx context.Context, s *Stack, schedule string, logger *slog.Logger) error {
	err := s.Triggers.Register(s.EventBus)
	if err != nil {
		return fmt.Errorf("failed to register trigger listener: %w", err)
	}

	err = s.EventBus.Subscribe(ctx)
	if err != nil {
		return err
	}

	err = s.Resumer.Start(ctx, schedule)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "Worker started", "sweep_schedule", schedule)

	// Catch up on instances that came due while no worker was running.
	_, err = s.Resumer.Sweep(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Initial sweep failed", "error", err)
	}

	<-ctx.Done()

	logger.InfoContext(ctx, "Shutting down worker...")
	s.Resumer.Stop()

	return nil
}
