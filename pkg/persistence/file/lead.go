package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
)

// LeadRepository handles lead file operations.
type LeadRepository struct {
	root string
	mu   sync.Mutex
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(root string) *LeadRepository {
	return &LeadRepository{root: root}
}

func (lr *LeadRepository) path(id string) string {
	return filepath.Join(lr.root, "leads", id+".json")
}

// GetByID retrieves a lead by its ID.
func (lr *LeadRepository) GetByID(_ context.Context, id string) (*models.Lead, error) {
	err := validateID(id)
	if err != nil {
		return nil, err
	}

	return lr.load(id)
}

func (lr *LeadRepository) load(id string) (*models.Lead, error) {
	var lead models.Lead

	err := readJSON(lr.path(id), &lead)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("lead %s: %w", id, persistence.ErrLeadNotFound)
		}

		return nil, fmt.Errorf("failed to fetch lead %s: %w", id, err)
	}

	return &lead, nil
}

// Save creates or replaces a lead.
func (lr *LeadRepository) Save(_ context.Context, lead *models.Lead) error {
	err := validateID(lead.ID)
	if err != nil {
		return err
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()

	lead.UpdatedAt = time.Now().UTC()

	return writeJSON(lr.path(lead.ID), lead)
}

// Update applies a partial update to the engine-owned lead fields.
func (lr *LeadRepository) Update(_ context.Context, id string, update models.LeadUpdate) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()

	lead, err := lr.load(id)
	if err != nil {
		return err
	}

	update.Apply(lead, time.Now().UTC())

	return writeJSON(lr.path(id), lead)
}
