package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quasarerp/automations/pkg/credentials"
	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule is the cron schedule of the waiting-instance sweep.
const DefaultSweepSchedule = "@every 5m"

// Runner steps and resumes workflow instances.
type Runner interface {
	Stepper
	Resume(ctx context.Context, instanceID string) (*models.WorkflowInstance, error)
}

// Resumer re-invokes the engine for instances parked in WAITING or PAUSED.
type Resumer struct {
	instances   persistence.InstanceRepository
	runner      Runner
	credentials credentials.Store
	logger      *slog.Logger
	clock       func() time.Time

	cron *cron.Cron
}

// NewResumer creates a Resumer.
func NewResumer(p persistence.Persistence, runner Runner, store credentials.Store, logger *slog.Logger) *Resumer {
	return &Resumer{
		instances:   p.InstanceRepository(),
		runner:      runner,
		credentials: store,
		logger:      logger,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// Sweep steps every waiting instance whose next_run has passed and returns
// how many were stepped.
func (r *Resumer) Sweep(ctx context.Context) (int, error) {
	now := r.clock()

	due, err := r.instances.List(ctx, persistence.InstanceFilter{
		Status:    models.InstanceStatusWaiting,
		DueBefore: &now,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list due instances: %w", err)
	}

	stepped := 0

	for _, instance := range due {
		_, err := r.runner.Step(ctx, instance.ID)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to step due instance", "instance_id", instance.ID, "error", err)

			continue
		}

		stepped++
	}

	if len(due) > 0 {
		r.logger.InfoContext(ctx, "Sweep finished", "due", len(due), "stepped", stepped)
	}

	return stepped, nil
}

// ResumePaused resumes every paused instance once the mail credential is
// connected and returns how many were resumed.
func (r *Resumer) ResumePaused(ctx context.Context) (int, error) {
	token, err := r.credentials.Get(ctx, credentials.KindMail)
	if err != nil {
		return 0, fmt.Errorf("failed to read mail credential: %w", err)
	}

	if token == "" {
		return 0, nil
	}

	paused, err := r.instances.List(ctx, persistence.InstanceFilter{Status: models.InstanceStatusPaused})
	if err != nil {
		return 0, fmt.Errorf("failed to list paused instances: %w", err)
	}

	resumed := 0

	for _, instance := range paused {
		_, err := r.runner.Resume(ctx, instance.ID)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to resume instance", "instance_id", instance.ID, "error", err)

			continue
		}

		resumed++
	}

	r.logger.InfoContext(ctx, "Paused instances resumed", "paused", len(paused), "resumed", resumed)

	return resumed, nil
}

// Start runs Sweep on the cron schedule until Stop is called.
func (r *Resumer) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	_, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err = r.cron.AddFunc(schedule, func() {
		_, err := r.Sweep(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "Sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	r.cron.Start()
	r.logger.InfoContext(ctx, "Sweep scheduled", "schedule", schedule)

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Resumer) Stop() {
	if r.cron == nil {
		return
	}

	<-r.cron.Stop().Done()
}
