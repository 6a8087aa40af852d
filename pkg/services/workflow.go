package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/quasarerp/automations/pkg/eventbus"
	"github.com/quasarerp/automations/pkg/events"
	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

// Triggers lists the domain events a workflow can start on.
var Triggers = []string{models.TriggerLeadApproved}

// DeployRequest describes a workflow to deploy.
type DeployRequest struct {
	Name    string        `json:"name"    validate:"required,max=200"`
	Trigger string        `json:"trigger" validate:"required"`
	Graph   *models.Graph `json:"graph"   validate:"required"`
}

type Workflow struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
	clock       func() time.Time
}

// NewWorkflow creates a new workflow service. publisher may be nil.
func NewWorkflow(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Workflow {
	return &Workflow{
		persistence: p,
		publisher:   publisher,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (w *Workflow) validate(op string, req DeployRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return NewValidationError(op, "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	}

	err := w.validator.Struct(req)
	if err != nil {
		return NewValidationError(op, "INVALID_REQUEST", err.Error(), fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	if !slices.Contains(Triggers, req.Trigger) {
		return NewValidationError(op, "UNKNOWN_TRIGGER",
			fmt.Sprintf("unknown trigger %q, allowed: %s", req.Trigger, strings.Join(Triggers, ", ")),
			ErrUnknownTrigger)
	}

	err = w.validator.Struct(req.Graph)
	if err != nil {
		return NewValidationError(op, "INVALID_GRAPH", err.Error(), fmt.Errorf("%w: %w", ErrInvalidEdge, err))
	}

	err = ValidateGraph(req.Graph)
	if err != nil {
		return NewValidationError(op, "INVALID_GRAPH", err.Error(), err)
	}

	return nil
}

// Deploy validates the graph and stores it as a new active workflow with
// zeroed stats.
func (w *Workflow) Deploy(ctx context.Context, req DeployRequest) (*models.Workflow, error) {
	err := w.validate("Deploy", req)
	if err != nil {
		return nil, err
	}

	now := w.clock()
	workflow := &models.Workflow{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Active:    true,
		Trigger:   req.Trigger,
		Graph:     req.Graph.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = w.persistence.WorkflowRepository().Create(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow deployed",
		"workflow_id", workflow.ID, "name", workflow.Name, "nodes", len(workflow.Graph.Nodes))

	w.publish(ctx, workflow)

	return workflow, nil
}

// Redeploy replaces the name, trigger and graph of an existing workflow.
// Running instances continue on the new graph from their current node.
func (w *Workflow) Redeploy(ctx context.Context, id string, req DeployRequest) (*models.Workflow, error) {
	err := w.validate("Redeploy", req)
	if err != nil {
		return nil, err
	}

	workflow, err := w.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.DeletedAt != nil {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrWorkflowDeleted)
	}

	workflow.Name = strings.TrimSpace(req.Name)
	workflow.Trigger = req.Trigger
	workflow.Graph = req.Graph.Clone()
	workflow.Active = true
	workflow.UpdatedAt = w.clock()

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	w.publish(ctx, workflow)

	return workflow, nil
}

func (w *Workflow) publish(ctx context.Context, workflow *models.Workflow) {
	if w.publisher == nil {
		return
	}

	err := w.publisher.Publish(ctx, workflow.ID, events.NewWorkflowDeployed(workflow))
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish workflow deployed event", "workflow_id", workflow.ID, "error", err)
	}
}

// FetchByID retrieves a workflow by its ID, including soft-deleted ones.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// List returns the workflows that have not been deleted, newest first.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	all, err := w.persistence.WorkflowRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return slices.DeleteFunc(all, func(workflow *models.Workflow) bool {
		return workflow.DeletedAt != nil
	}), nil
}

// SetActive turns trigger matching on or off for a workflow. Existing
// instances are unaffected.
func (w *Workflow) SetActive(ctx context.Context, id string, active bool) (*models.Workflow, error) {
	workflow, err := w.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.DeletedAt != nil {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrWorkflowDeleted)
	}

	if workflow.Active == active {
		return workflow, nil
	}

	workflow.Active = active
	workflow.UpdatedAt = w.clock()

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Workflow activation changed", "workflow_id", id, "active", active)

	return workflow, nil
}

// Delete soft-deletes a workflow. Instances are kept as an audit trail.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	workflow, err := w.FetchByID(ctx, id)
	if err != nil {
		return err
	}

	if workflow.DeletedAt != nil {
		return nil
	}

	now := w.clock()
	workflow.Active = false
	workflow.DeletedAt = &now
	workflow.UpdatedAt = now

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// IsNotFound reports whether err means the workflow does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, persistence.ErrWorkflowNotFound) ||
		errors.Is(err, persistence.ErrInstanceNotFound) ||
		errors.Is(err, persistence.ErrLeadNotFound)
}
