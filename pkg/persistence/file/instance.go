package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
)

// InstanceRepository handles workflow instance file operations.
//
// Uniqueness of (workflow, lead) is enforced with a claim file created with
// O_EXCL, so two processes sharing the same root cannot both start an instance.
type InstanceRepository struct {
	root string
	mu   sync.Mutex
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(root string) *InstanceRepository {
	return &InstanceRepository{root: root}
}

func (ir *InstanceRepository) dir() string {
	return filepath.Join(ir.root, "instances")
}

func (ir *InstanceRepository) path(id string) string {
	return filepath.Join(ir.dir(), id+".json")
}

// claimPath keeps one directory per workflow. validateID rejects path
// separators, so distinct pairs never share a claim file.
func (ir *InstanceRepository) claimPath(workflowID, leadID string) string {
	return filepath.Join(ir.dir(), "claims", workflowID, leadID+".claim")
}

// Create stores a new instance. A second instance for the same workflow and
// lead fails with ErrInstanceAlreadyExists.
func (ir *InstanceRepository) Create(_ context.Context, instance *models.WorkflowInstance) error {
	for _, id := range []string{instance.ID, instance.WorkflowID, instance.LeadID} {
		err := validateID(id)
		if err != nil {
			return persistence.NewInstancePairError("Create", instance.WorkflowID, instance.LeadID, err)
		}
	}

	claim := ir.claimPath(instance.WorkflowID, instance.LeadID)

	err := os.MkdirAll(filepath.Dir(claim), 0750)
	if err != nil {
		return fmt.Errorf("failed to create claims directory: %w", err)
	}

	f, err := os.OpenFile(claim, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return persistence.NewInstancePairError("Create", instance.WorkflowID, instance.LeadID,
				persistence.ErrInstanceAlreadyExists)
		}

		return fmt.Errorf("failed to claim instance slot: %w", err)
	}

	_, err = f.WriteString(instance.ID)
	closeErr := f.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(claim)

		return fmt.Errorf("failed to write instance claim: %w", err)
	}

	now := time.Now().UTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}

	instance.UpdatedAt = now

	if instance.Logs == nil {
		instance.Logs = []string{}
	}

	ir.mu.Lock()
	defer ir.mu.Unlock()

	err = writeJSON(ir.path(instance.ID), instance)
	if err != nil {
		_ = os.Remove(claim)

		return err
	}

	return nil
}

// GetByID retrieves an instance by its ID.
func (ir *InstanceRepository) GetByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	err := validateID(id)
	if err != nil {
		return nil, persistence.NewInstanceError("GetByID", id, err)
	}

	return ir.load(id)
}

func (ir *InstanceRepository) load(id string) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance

	err := readJSON(ir.path(id), &instance)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewInstanceError("GetByID", id, persistence.ErrInstanceNotFound)
		}

		return nil, fmt.Errorf("failed to fetch instance %s: %w", id, err)
	}

	return &instance, nil
}

// FindByWorkflowAndLead resolves the instance through its claim file.
func (ir *InstanceRepository) FindByWorkflowAndLead(
	_ context.Context,
	workflowID, leadID string,
) (*models.WorkflowInstance, error) {
	if validateID(workflowID) != nil || validateID(leadID) != nil {
		return nil, persistence.NewInstancePairError("FindByWorkflowAndLead", workflowID, leadID, persistence.ErrInvalidID)
	}

	body, err := os.ReadFile(ir.claimPath(workflowID, leadID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewInstancePairError("FindByWorkflowAndLead", workflowID, leadID,
				persistence.ErrInstanceNotFound)
		}

		return nil, fmt.Errorf("failed to read instance claim: %w", err)
	}

	return ir.load(strings.TrimSpace(string(body)))
}

// Update applies a partial update under the repository lock and returns the
// stored result.
func (ir *InstanceRepository) Update(
	_ context.Context,
	id string,
	update models.InstanceUpdate,
) (*models.WorkflowInstance, error) {
	err := validateID(id)
	if err != nil {
		return nil, persistence.NewInstanceError("Update", id, err)
	}

	ir.mu.Lock()
	defer ir.mu.Unlock()

	instance, err := ir.load(id)
	if err != nil {
		return nil, err
	}

	if !update.Allows(instance) {
		return nil, persistence.NewInstanceError("Update", id, persistence.ErrInstanceClaimed)
	}

	update.Apply(instance, time.Now().UTC())

	err = writeJSON(ir.path(id), instance)
	if err != nil {
		return nil, err
	}

	return instance, nil
}

// AppendLog appends a single line to the instance's activity log.
func (ir *InstanceRepository) AppendLog(ctx context.Context, id, message string) error {
	_, err := ir.Update(ctx, id, models.InstanceUpdate{AppendLogs: []string{message}})

	return err
}

// List returns instances matching filter, oldest first.
func (ir *InstanceRepository) List(_ context.Context, filter persistence.InstanceFilter) ([]*models.WorkflowInstance, error) {
	ids, err := listJSON(ir.dir())
	if err != nil {
		return nil, err
	}

	instances := make([]*models.WorkflowInstance, 0, len(ids))

	for _, id := range ids {
		instance, err := ir.load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load instance %s: %w", id, err)
		}

		if filter.Matches(instance) {
			instances = append(instances, instance)
		}
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].CreatedAt.Before(instances[j].CreatedAt)
	})

	return instances, nil
}
