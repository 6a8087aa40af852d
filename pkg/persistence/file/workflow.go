package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root string
	mu   sync.Mutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

func (wr *WorkflowRepository) path(id string) string {
	return filepath.Join(wr.dir(), id+".json")
}

// Create stores a new workflow, failing if the id is taken.
func (wr *WorkflowRepository) Create(_ context.Context, workflow *models.Workflow) error {
	err := validateID(workflow.ID)
	if err != nil {
		return persistence.NewWorkflowError("Create", workflow.ID, err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	_, err = os.Stat(wr.path(workflow.ID))
	if err == nil {
		return persistence.NewWorkflowError("Create", workflow.ID, persistence.ErrWorkflowAlreadyExists)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	return writeJSON(wr.path(workflow.ID), workflow)
}

// Save replaces an existing workflow.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	err := validateID(workflow.ID)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	_, err = os.Stat(wr.path(workflow.ID))
	if errors.Is(err, os.ErrNotExist) {
		return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	workflow.UpdatedAt = time.Now().UTC()

	return writeJSON(wr.path(workflow.ID), workflow)
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	err := validateID(id)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return wr.load(id)
}

func (wr *WorkflowRepository) load(id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := readJSON(wr.path(id), &workflow)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	workflow.Normalize()

	return &workflow, nil
}

// List returns every stored workflow, newest first.
func (wr *WorkflowRepository) List(_ context.Context) ([]*models.Workflow, error) {
	ids, err := listJSON(wr.dir())
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// ListActive returns runnable workflows listening on trigger.
func (wr *WorkflowRepository) ListActive(ctx context.Context, trigger string) ([]*models.Workflow, error) {
	all, err := wr.List(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*models.Workflow, 0, len(all))

	for _, workflow := range all {
		if workflow.IsRunnable() && workflow.Trigger == trigger {
			active = append(active, workflow)
		}
	}

	return active, nil
}

// IncrementStats adds to the processed and converted counters.
func (wr *WorkflowRepository) IncrementStats(_ context.Context, id string, processed, converted int) error {
	err := validateID(id)
	if err != nil {
		return persistence.NewWorkflowError("IncrementStats", id, err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.load(id)
	if err != nil {
		return err
	}

	workflow.Stats.Processed += processed
	workflow.Stats.Converted += converted
	workflow.UpdatedAt = time.Now().UTC()

	return writeJSON(wr.path(id), workflow)
}
