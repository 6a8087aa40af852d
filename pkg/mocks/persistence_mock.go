package mocks

import (
	"context"

	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) ListActive(ctx context.Context, trigger string) ([]*models.Workflow, error) {
	args := m.Called(ctx, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) IncrementStats(ctx context.Context, id string, processed, converted int) error {
	args := m.Called(ctx, id, processed, converted)

	return args.Error(0)
}

// MockInstanceRepository is a mock implementation of persistence.InstanceRepository interface.
type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	args := m.Called(ctx, instance)

	return args.Error(0)
}

func (m *MockInstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowInstance), args.Error(1)
}

func (m *MockInstanceRepository) FindByWorkflowAndLead(
	ctx context.Context,
	workflowID, leadID string,
) (*models.WorkflowInstance, error) {
	args := m.Called(ctx, workflowID, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowInstance), args.Error(1)
}

func (m *MockInstanceRepository) Update(
	ctx context.Context,
	id string,
	update models.InstanceUpdate,
) (*models.WorkflowInstance, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowInstance), args.Error(1)
}

func (m *MockInstanceRepository) AppendLog(ctx context.Context, id, message string) error {
	args := m.Called(ctx, id, message)

	return args.Error(0)
}

func (m *MockInstanceRepository) List(
	ctx context.Context,
	filter persistence.InstanceFilter,
) ([]*models.WorkflowInstance, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowInstance), args.Error(1)
}

// MockLeadRepository is a mock implementation of persistence.LeadRepository interface.
type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	args := m.Called(ctx, lead)

	return args.Error(0)
}

func (m *MockLeadRepository) Update(ctx context.Context, id string, update models.LeadUpdate) error {
	args := m.Called(ctx, id, update)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Workflows MockWorkflowRepository
	Instances MockInstanceRepository
	Leads     MockLeadRepository
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return &m.Workflows
}

func (m *MockPersistence) InstanceRepository() persistence.InstanceRepository {
	return &m.Instances
}

func (m *MockPersistence) LeadRepository() persistence.LeadRepository {
	return &m.Leads
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
