package designer

import (
	"context"
	"fmt"

	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/services"
)

// Deployer persists a designed graph as a workflow.
type Deployer interface {
	Deploy(ctx context.Context, req services.DeployRequest) (*models.Workflow, error)
}

// Deploy stores the graph as a new active workflow and closes the session.
// The session stays open when deployment fails so the graph can be fixed.
func (s *Session) Deploy(ctx context.Context, deployer Deployer, name, trigger string) (*models.Workflow, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}

	if s.graph.IsEmpty() {
		return nil, ErrGraphEmpty
	}

	workflow, err := deployer.Deploy(ctx, services.DeployRequest{
		Name:    name,
		Trigger: trigger,
		Graph:   s.graph.Clone(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deploy workflow: %w", err)
	}

	s.closed = true
	s.connection = nil
	s.selected = ""

	return workflow, nil
}
