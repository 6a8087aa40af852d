package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/quasarerp/automations/pkg/eventbus"
	"github.com/quasarerp/automations/pkg/events"
	"github.com/quasarerp/automations/pkg/mocks"
	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
	"github.com/quasarerp/automations/pkg/persistence/file"
	"github.com/quasarerp/automations/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeRunner records the instances it was asked to step or resume.
type fakeRunner struct {
	instances persistence.InstanceRepository

	mu      sync.Mutex
	stepped []string
	resumed []string
}

func (r *fakeRunner) Step(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	r.mu.Lock()
	r.stepped = append(r.stepped, id)
	r.mu.Unlock()

	return r.instances.GetByID(ctx, id)
}

func (r *fakeRunner) Resume(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	r.mu.Lock()
	r.resumed = append(r.resumed, id)
	r.mu.Unlock()

	running := models.InstanceStatusRunning

	return r.instances.Update(ctx, id, models.InstanceUpdate{Status: &running})
}

type triggerFixture struct {
	store    *file.Persistence
	runner   *fakeRunner
	bus      *mocks.MockEventBus
	listener *TriggerListener
	lead     *models.Lead
}

func newTriggerFixture(t *testing.T) *triggerFixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	runner := &fakeRunner{instances: store.InstanceRepository()}
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	lead := testutil.CreateTestLead()
	require.NoError(t, store.LeadRepository().Save(context.Background(), lead))

	return &triggerFixture{
		store:    store,
		runner:   runner,
		bus:      bus,
		listener: NewTriggerListener(store, runner, bus, discardLogger()),
		lead:     lead,
	}
}

func (f *triggerFixture) workflow(t *testing.T, overrides ...func(*models.Workflow)) *models.Workflow {
	t.Helper()

	workflow := testutil.CreateTestWorkflow(testutil.LinearGraph(), overrides...)
	require.NoError(t, f.store.WorkflowRepository().Create(context.Background(), workflow))

	return workflow
}

func TestTriggerListener_StartsActiveWorkflows(t *testing.T) {
	f := newTriggerFixture(t)
	ctx := context.Background()

	active := f.workflow(t)
	f.workflow(t, func(w *models.Workflow) { w.Active = false })

	started, err := f.listener.TriggerWorkflowForLead(ctx, f.lead.ID)
	require.NoError(t, err)
	require.Len(t, started, 1)

	instance := started[0]
	assert.Equal(t, active.ID, instance.WorkflowID)
	assert.Equal(t, models.InstanceStatusRunning, instance.Status)
	assert.Equal(t, "T1", instance.CurrentNodeID)
	assert.Equal(t, []string{instance.ID}, f.runner.stepped)

	stored, err := f.store.WorkflowRepository().GetByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Stats.Processed)

	lead, err := f.store.LeadRepository().GetByID(ctx, f.lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", lead.AutomationStatus)

	f.bus.AssertCalled(t, "Publish", mock.Anything, f.lead.ID, mock.AnythingOfType("*events.InstanceCreated"))
}

func TestTriggerListener_IsIdempotent(t *testing.T) {
	f := newTriggerFixture(t)
	ctx := context.Background()
	workflow := f.workflow(t)

	first, err := f.listener.TriggerWorkflowForLead(ctx, f.lead.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.listener.TriggerWorkflowForLead(ctx, f.lead.ID)
	require.NoError(t, err)
	assert.Empty(t, second)

	instances, err := f.store.InstanceRepository().List(ctx, persistence.InstanceFilter{WorkflowID: workflow.ID})
	require.NoError(t, err)
	assert.Len(t, instances, 1)
}

func TestTriggerListener_ConcurrentTriggersCreateOneInstance(t *testing.T) {
	f := newTriggerFixture(t)
	ctx := context.Background()
	workflow := f.workflow(t)

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := f.listener.TriggerWorkflowForLead(ctx, f.lead.ID)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	instances, err := f.store.InstanceRepository().List(ctx, persistence.InstanceFilter{WorkflowID: workflow.ID})
	require.NoError(t, err)
	assert.Len(t, instances, 1)
}

func TestTriggerListener_UnknownLead(t *testing.T) {
	f := newTriggerFixture(t)
	f.workflow(t)

	_, err := f.listener.TriggerWorkflowForLead(context.Background(), "ghost")
	require.ErrorIs(t, err, persistence.ErrLeadNotFound)

	err = f.listener.handleLeadApproved(context.Background(), events.NewLeadApproved("ghost"))
	require.NoError(t, err)
}

func TestTriggerListener_Register(t *testing.T) {
	f := newTriggerFixture(t)
	f.workflow(t)

	bus := &mocks.MockEventBus{}
	bus.On("Handle", events.LeadApprovedEvent, mock.Anything).Return(nil)

	require.NoError(t, f.listener.Register(bus))
	bus.AssertExpectations(t)

	handler := bus.Calls[0].Arguments.Get(1).(eventbus.EventHandler)
	require.NoError(t, handler(context.Background(), events.NewLeadApproved(f.lead.ID)))
	assert.Len(t, f.runner.stepped, 1)
}

type failingStepper struct{}

func (failingStepper) Step(context.Context, string) (*models.WorkflowInstance, error) {
	return nil, errors.New("engine unavailable")
}

func TestTriggerListener_FailureOnOneWorkflowDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	store := &mocks.MockPersistence{}

	lead := testutil.CreateTestLead()
	broken := testutil.CreateTestWorkflow(testutil.LinearGraph())
	healthy := testutil.CreateTestWorkflow(testutil.DecisionGraph())

	store.Leads.On("GetByID", mock.Anything, lead.ID).Return(lead, nil)
	store.Leads.On("Update", mock.Anything, lead.ID, mock.Anything).Return(nil)
	store.Workflows.On("ListActive", mock.Anything, models.TriggerLeadApproved).
		Return([]*models.Workflow{broken, healthy}, nil)
	store.Workflows.On("IncrementStats", mock.Anything, healthy.ID, 1, 0).Return(errors.New("stats unavailable"))
	store.Instances.On("Create", mock.Anything, mock.MatchedBy(func(i *models.WorkflowInstance) bool {
		return i.WorkflowID == broken.ID
	})).Return(errors.New("disk full"))
	store.Instances.On("Create", mock.Anything, mock.MatchedBy(func(i *models.WorkflowInstance) bool {
		return i.WorkflowID == healthy.ID
	})).Return(nil)

	listener := NewTriggerListener(store, failingStepper{}, nil, discardLogger())

	started, err := listener.TriggerWorkflowForLead(ctx, lead.ID)
	require.NoError(t, err)

	require.Len(t, started, 1)
	assert.Equal(t, healthy.ID, started[0].WorkflowID)
	assert.Equal(t, "T1", started[0].CurrentNodeID)
	assert.Equal(t, models.InstanceStatusRunning, started[0].Status)

	store.Workflows.AssertExpectations(t)
	store.Instances.AssertExpectations(t)
	store.Workflows.AssertNotCalled(t, "IncrementStats", mock.Anything, broken.ID, mock.Anything, mock.Anything)
}

func TestTriggerListener_ListActiveError(t *testing.T) {
	store := &mocks.MockPersistence{}
	lead := testutil.CreateTestLead()

	store.Leads.On("GetByID", mock.Anything, lead.ID).Return(lead, nil)
	store.Workflows.On("ListActive", mock.Anything, models.TriggerLeadApproved).
		Return(nil, errors.New("connection reset"))

	listener := NewTriggerListener(store, failingStepper{}, nil, discardLogger())

	_, err := listener.TriggerWorkflowForLead(context.Background(), lead.ID)
	require.ErrorContains(t, err, "failed to list active workflows")
}
