package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
)

const instanceColumns = `
	id
  , workflow_id
  , lead_id
  , status
  , current_node_id
  , current_step_index
  , last_thread_id
  , next_run
  , lease_until
  , logs
  , created_at
  , updated_at
`

// InstanceRepository handles workflow instance database operations.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(db *sql.DB, logger *slog.Logger) *InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

// Create inserts a new instance. The (workflow_id, lead_id) unique constraint
// turns a concurrent duplicate into ErrInstanceAlreadyExists.
func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	now := time.Now().UTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}

	instance.UpdatedAt = now

	if instance.Logs == nil {
		instance.Logs = []string{}
	}

	logsJSON, err := json.Marshal(instance.Logs)
	if err != nil {
		return fmt.Errorf("failed to marshal logs: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_instances (id, workflow_id, lead_id, status, current_node_id,
			current_step_index, last_thread_id, next_run, lease_until, logs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		instance.ID,
		instance.WorkflowID,
		instance.LeadID,
		instance.Status,
		instance.CurrentNodeID,
		instance.CurrentStepIndex,
		instance.LastThreadID,
		instance.NextRun,
		instance.LeaseUntil,
		string(logsJSON),
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewInstancePairError("Create", instance.WorkflowID, instance.LeadID,
				persistence.ErrInstanceAlreadyExists)
		}

		return fmt.Errorf("failed to insert instance: %w", err)
	}

	return nil
}

// GetByID retrieves an instance by its ID.
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+instanceColumns+" FROM workflow_instances WHERE id = $1", id)

	instance, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewInstanceError("GetByID", id, persistence.ErrInstanceNotFound)
		}

		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	return instance, nil
}

// FindByWorkflowAndLead returns the instance for a (workflow, lead) pair.
func (r *InstanceRepository) FindByWorkflowAndLead(
	ctx context.Context,
	workflowID, leadID string,
) (*models.WorkflowInstance, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+instanceColumns+
		" FROM workflow_instances WHERE workflow_id = $1 AND lead_id = $2", workflowID, leadID)

	instance, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewInstancePairError("FindByWorkflowAndLead", workflowID, leadID,
				persistence.ErrInstanceNotFound)
		}

		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	return instance, nil
}

// Update applies a partial update inside a transaction holding the row lock.
func (r *InstanceRepository) Update(
	ctx context.Context,
	id string,
	update models.InstanceUpdate,
) (*models.WorkflowInstance, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, "SELECT "+instanceColumns+
		" FROM workflow_instances WHERE id = $1 FOR UPDATE", id)

	instance, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewInstanceError("Update", id, persistence.ErrInstanceNotFound)
		}

		return nil, fmt.Errorf("failed to lock instance: %w", err)
	}

	if !update.Allows(instance) {
		err = persistence.NewInstanceError("Update", id, persistence.ErrInstanceClaimed)

		return nil, err
	}

	update.Apply(instance, time.Now().UTC())

	logsJSON, err := json.Marshal(instance.Logs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal logs: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflow_instances SET
			status = $2,
			current_node_id = $3,
			current_step_index = $4,
			last_thread_id = $5,
			next_run = $6,
			lease_until = $7,
			logs = $8,
			updated_at = $9
		WHERE id = $1
	`,
		instance.ID,
		instance.Status,
		instance.CurrentNodeID,
		instance.CurrentStepIndex,
		instance.LastThreadID,
		instance.NextRun,
		instance.LeaseUntil,
		string(logsJSON),
		instance.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update instance: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit instance update: %w", err)
	}

	return instance, nil
}

// AppendLog appends a line to the instance log without reading it back.
func (r *InstanceRepository) AppendLog(ctx context.Context, id, message string) error {
	entry, err := json.Marshal([]string{message})
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_instances SET logs = logs || $2::jsonb, updated_at = $3 WHERE id = $1
	`, id, string(entry), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to append instance log: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewInstanceError("AppendLog", id, persistence.ErrInstanceNotFound)
	}

	return nil
}

// List returns instances matching filter, oldest first.
func (r *InstanceRepository) List(
	ctx context.Context,
	filter persistence.InstanceFilter,
) ([]*models.WorkflowInstance, error) {
	var (
		where []string
		args  []any
	)

	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.WorkflowID != "" {
		add("workflow_id = ?", filter.WorkflowID)
	}

	if filter.LeadID != "" {
		add("lead_id = ?", filter.LeadID)
	}

	if filter.Status != "" {
		add("status = ?", filter.Status)
	}

	if filter.DueBefore != nil {
		add("next_run IS NOT NULL AND next_run <= ?", *filter.DueBefore)
	}

	query := "SELECT " + instanceColumns + " FROM workflow_instances"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		instances = append(instances, instance)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}

	return instances, nil
}

func scanInstance(row rowScanner) (*models.WorkflowInstance, error) {
	var (
		instance  models.WorkflowInstance
		stepIndex sql.NullInt64
		nextRun   sql.NullTime
		lease     sql.NullTime
		logsJSON  []byte
	)

	err := row.Scan(
		&instance.ID,
		&instance.WorkflowID,
		&instance.LeadID,
		&instance.Status,
		&instance.CurrentNodeID,
		&stepIndex,
		&instance.LastThreadID,
		&nextRun,
		&lease,
		&logsJSON,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if stepIndex.Valid {
		index := int(stepIndex.Int64)
		instance.CurrentStepIndex = &index
	}

	if nextRun.Valid {
		next := nextRun.Time.UTC()
		instance.NextRun = &next
	}

	if lease.Valid {
		until := lease.Time.UTC()
		instance.LeaseUntil = &until
	}

	instance.Logs = []string{}

	if len(logsJSON) > 0 {
		err = json.Unmarshal(logsJSON, &instance.Logs)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal logs of instance %s: %w", instance.ID, err)
		}
	}

	return &instance, nil
}
