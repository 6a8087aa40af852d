package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
)

const workflowColumns = `
	id
  , name
  , active
  , trigger
  , graph
  , steps
  , stats_processed
  , stats_converted
  , created_at
  , updated_at
  , deleted_at
`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Create inserts a new workflow. An empty ID is assigned a UUIDv7.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	graphJSON, stepsJSON, err := marshalWorkflowDocs(workflow)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflows (id, name, active, trigger, graph, steps,
			stats_processed, stats_converted, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		workflow.ID,
		workflow.Name,
		workflow.Active,
		workflow.Trigger,
		graphJSON,
		stepsJSON,
		workflow.Stats.Processed,
		workflow.Stats.Converted,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrWorkflowAlreadyExists)
		}

		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	return nil
}

// Save updates an existing workflow. Stats are owned by IncrementStats and are
// not overwritten.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	workflow.UpdatedAt = time.Now().UTC()

	graphJSON, stepsJSON, err := marshalWorkflowDocs(workflow)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE workflows SET
			name = $2,
			active = $3,
			trigger = $4,
			graph = $5,
			steps = $6,
			updated_at = $7,
			deleted_at = $8
		WHERE id = $1
	`,
		workflow.ID,
		workflow.Name,
		workflow.Active,
		workflow.Trigger,
		graphJSON,
		stepsJSON,
		workflow.UpdatedAt,
		workflow.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// GetByID returns a workflow by its ID, including soft-deleted ones.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE id = $1", id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// List returns all workflows, newest first.
func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	return r.query(ctx, "SELECT "+workflowColumns+" FROM workflows ORDER BY created_at DESC")
}

// ListActive returns runnable workflows listening on trigger.
func (r *WorkflowRepository) ListActive(ctx context.Context, trigger string) ([]*models.Workflow, error) {
	return r.query(ctx, "SELECT "+workflowColumns+` FROM workflows
		WHERE active AND deleted_at IS NULL AND trigger = $1
		ORDER BY created_at DESC`, trigger)
}

// IncrementStats atomically adds to the workflow counters.
func (r *WorkflowRepository) IncrementStats(ctx context.Context, id string, processed, converted int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workflows SET
			stats_processed = stats_processed + $2,
			stats_converted = stats_converted + $3
		WHERE id = $1
	`, id, processed, converted)
	if err != nil {
		return fmt.Errorf("failed to increment workflow stats: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("IncrementStats", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) query(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow             models.Workflow
		graphJSON, stepsJSON []byte
		deletedAt            sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Active,
		&workflow.Trigger,
		&graphJSON,
		&stepsJSON,
		&workflow.Stats.Processed,
		&workflow.Stats.Converted,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(graphJSON) > 0 {
		err = json.Unmarshal(graphJSON, &workflow.Graph)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal graph of workflow %s: %w", workflow.ID, err)
		}
	}

	if len(stepsJSON) > 0 {
		err = json.Unmarshal(stepsJSON, &workflow.Steps)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps of workflow %s: %w", workflow.ID, err)
		}
	}

	if deletedAt.Valid {
		workflow.DeletedAt = &deletedAt.Time
	}

	workflow.Normalize()

	return &workflow, nil
}

// marshalWorkflowDocs returns the JSONB column values, nil for absent documents.
func marshalWorkflowDocs(workflow *models.Workflow) (any, any, error) {
	var graphJSON, stepsJSON any

	if workflow.Graph != nil {
		data, err := json.Marshal(workflow.Graph)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal graph: %w", err)
		}

		graphJSON = string(data)
	}

	if len(workflow.Steps) > 0 {
		data, err := json.Marshal(workflow.Steps)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal steps: %w", err)
		}

		stepsJSON = string(data)
	}

	return graphJSON, stepsJSON, nil
}
