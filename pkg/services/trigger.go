package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/quasarerp/automations/pkg/eventbus"
	"github.com/quasarerp/automations/pkg/events"
	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
)

// Stepper advances workflow instances.
type Stepper interface {
	Step(ctx context.Context, instanceID string) (*models.WorkflowInstance, error)
}

// TriggerListener starts workflow instances for domain events.
type TriggerListener struct {
	persistence persistence.Persistence
	stepper     Stepper
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	clock       func() time.Time
}

// NewTriggerListener creates a TriggerListener. publisher may be nil.
func NewTriggerListener(
	p persistence.Persistence,
	stepper Stepper,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *TriggerListener {
	return &TriggerListener{
		persistence: p,
		stepper:     stepper,
		publisher:   publisher,
		logger:      logger,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// TriggerWorkflowForLead starts every active LEAD_APPROVED workflow for the
// lead and steps the new instances. Workflows that already have an instance for
// the lead are skipped; the store rejects duplicates atomically, so concurrent
// calls still create a single instance per workflow. A failure on one workflow
// is logged and does not stop the others.
func (l *TriggerListener) TriggerWorkflowForLead(ctx context.Context, leadID string) ([]*models.WorkflowInstance, error) {
	lead, err := l.persistence.LeadRepository().GetByID(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}

	workflows, err := l.persistence.WorkflowRepository().ListActive(ctx, models.TriggerLeadApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list active workflows: %w", err)
	}

	logger := l.logger.With("lead_id", lead.ID)
	started := make([]*models.WorkflowInstance, 0, len(workflows))

	for _, workflow := range workflows {
		instance, err := l.start(ctx, workflow, lead)

		switch {
		case persistence.IsInstanceAlreadyExists(err):
			logger.DebugContext(ctx, "Instance already exists, skipping", "workflow_id", workflow.ID)
		case err != nil:
			logger.ErrorContext(ctx, "Failed to start workflow", "workflow_id", workflow.ID, "error", err)
		default:
			started = append(started, instance)
		}
	}

	logger.InfoContext(ctx, "Lead approved", "workflows", len(workflows), "started", len(started))

	return started, nil
}

func (l *TriggerListener) start(
	ctx context.Context,
	workflow *models.Workflow,
	lead *models.Lead,
) (*models.WorkflowInstance, error) {
	trigger, ok := workflow.Graph.TriggerNode()
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", workflow.ID, ErrTriggerNodeRequired)
	}

	now := l.clock()
	instance := &models.WorkflowInstance{
		ID:            uuid.NewString(),
		WorkflowID:    workflow.ID,
		LeadID:        lead.ID,
		Status:        models.InstanceStatusRunning,
		CurrentNodeID: trigger.ID,
		Logs: []string{
			models.FormatLog(now, models.LogLevelInfo, fmt.Sprintf("Instance created for lead %s", lead.Name)),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := l.persistence.InstanceRepository().Create(ctx, instance)
	if err != nil {
		return nil, err
	}

	err = l.persistence.WorkflowRepository().IncrementStats(ctx, workflow.ID, 1, 0)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to count processed lead", "workflow_id", workflow.ID, "error", err)
	}

	running := string(models.InstanceStatusRunning)

	err = l.persistence.LeadRepository().Update(ctx, lead.ID, models.LeadUpdate{AutomationStatus: &running})
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to mirror automation status on lead", "lead_id", lead.ID, "error", err)
	}

	if l.publisher != nil {
		err = l.publisher.Publish(ctx, lead.ID, events.NewInstanceCreated(instance))
		if err != nil {
			l.logger.ErrorContext(ctx, "Failed to publish instance created event", "instance_id", instance.ID, "error", err)
		}
	}

	stepped, err := l.stepper.Step(ctx, instance.ID)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to step new instance", "instance_id", instance.ID, "error", err)

		return instance, nil
	}

	return stepped, nil
}

// Register subscribes the listener to lead.approved events.
func (l *TriggerListener) Register(bus eventbus.EventSubscriber) error {
	return bus.Handle(events.LeadApprovedEvent, l.handleLeadApproved)
}

func (l *TriggerListener) handleLeadApproved(ctx context.Context, event any) error {
	approved, ok := event.(*events.LeadApproved)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	_, err := l.TriggerWorkflowForLead(ctx, approved.LeadID)
	if errors.Is(err, persistence.ErrLeadNotFound) {
		l.logger.WarnContext(ctx, "Approved lead does not exist", "lead_id", approved.LeadID)

		return nil
	}

	return err
}
