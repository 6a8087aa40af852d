package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	fp := NewPersistence("/tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)

	fp = NewPersistence("file:///tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_HealthCheck(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	require.NoError(t, fp.HealthCheck(t.Context()))
	require.NoError(t, fp.Close(t.Context()))

	missing := NewPersistence(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, missing.HealthCheck(t.Context()))
}

func simpleGraph() *models.Graph {
	trigger := models.NewNode("n1", models.NodeTypeTrigger, "", models.Position{})
	goal := models.NewNode("n2", models.NodeTypeGoal, "", models.Position{X: 300})

	return &models.Graph{
		Nodes: []*models.Node{trigger, goal},
		Edges: []*models.Edge{{ID: "e1", Source: "n1", Target: "n2"}},
	}
}

func TestWorkflowRepository_CRUD(t *testing.T) {
	ctx := t.Context()
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	workflow := &models.Workflow{
		ID:      "wf-1",
		Name:    "Outbound",
		Active:  true,
		Trigger: models.TriggerLeadApproved,
		Graph:   simpleGraph(),
	}

	require.NoError(t, repo.Create(ctx, workflow))
	assert.False(t, workflow.CreatedAt.IsZero())

	err := repo.Create(ctx, workflow)
	require.ErrorIs(t, err, persistence.ErrWorkflowAlreadyExists)

	loaded, err := repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Outbound", loaded.Name)
	require.Len(t, loaded.Graph.Nodes, 2)
	assert.IsType(t, models.TriggerData{}, loaded.Graph.Nodes[0].Data)

	loaded.Active = false
	require.NoError(t, repo.Save(ctx, loaded))

	active, err := repo.ListActive(ctx, models.TriggerLeadApproved)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.IncrementStats(ctx, "wf-1", 2, 1))
	loaded, err = repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStats{Processed: 2, Converted: 1}, loaded.Stats)

	_, err = repo.GetByID(ctx, "nope")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = repo.Save(ctx, &models.Workflow{ID: "nope"})
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_RejectsTraversal(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	for _, id := range []string{"", "../etc/passwd", "a/b", `a\b`} {
		_, err := repo.GetByID(t.Context(), id)
		require.ErrorIs(t, err, persistence.ErrInvalidID, id)
	}
}

func TestWorkflowRepository_MigratesLegacyDocuments(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "workflows")
	require.NoError(t, os.MkdirAll(dir, 0750))

	legacy := `{
  "id": "legacy",
  "name": "Old flow",
  "active": true,
  "trigger": "LEAD_APPROVED",
  "steps": [
    {"type": "enrichment", "label": "Enrich"},
    {"type": "wait", "config": {"days": 2}}
  ],
  "stats": {"processed": 0, "converted": 0}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.json"), []byte(legacy), 0600))

	repo := NewWorkflowRepository(root)

	workflow, err := repo.GetByID(t.Context(), "legacy")
	require.NoError(t, err)
	require.NotNil(t, workflow.Graph)
	assert.Nil(t, workflow.Steps)
	_, ok := workflow.Graph.TriggerNode()
	assert.True(t, ok)
	assert.Equal(t, 1, workflow.Graph.CountByType(models.NodeTypeWait))
	assert.GreaterOrEqual(t, workflow.Graph.CountByType(models.NodeTypeGoal), 1)
}

func TestInstanceRepository_CreateIsUniquePerLead(t *testing.T) {
	ctx := t.Context()
	repo := NewInstanceRepository(t.TempDir())

	first := &models.WorkflowInstance{ID: "i-1", WorkflowID: "wf-1", LeadID: "lead-1", Status: models.InstanceStatusRunning}
	require.NoError(t, repo.Create(ctx, first))
	assert.NotNil(t, first.Logs)

	dup := &models.WorkflowInstance{ID: "i-2", WorkflowID: "wf-1", LeadID: "lead-1", Status: models.InstanceStatusRunning}
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceAlreadyExists(err))

	other := &models.WorkflowInstance{ID: "i-3", WorkflowID: "wf-2", LeadID: "lead-1", Status: models.InstanceStatusRunning}
	require.NoError(t, repo.Create(ctx, other))

	found, err := repo.FindByWorkflowAndLead(ctx, "wf-1", "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "i-1", found.ID)

	_, err = repo.FindByWorkflowAndLead(ctx, "wf-3", "lead-1")
	assert.True(t, persistence.IsInstanceNotFound(err))
}

func TestInstanceRepository_ClaimsDoNotCollide(t *testing.T) {
	ctx := t.Context()
	repo := NewInstanceRepository(t.TempDir())

	require.NoError(t, repo.Create(ctx, &models.WorkflowInstance{
		ID: "i-1", WorkflowID: "a__b", LeadID: "c", Status: models.InstanceStatusRunning,
	}))
	require.NoError(t, repo.Create(ctx, &models.WorkflowInstance{
		ID: "i-2", WorkflowID: "a", LeadID: "b__c", Status: models.InstanceStatusRunning,
	}))

	found, err := repo.FindByWorkflowAndLead(ctx, "a__b", "c")
	require.NoError(t, err)
	assert.Equal(t, "i-1", found.ID)

	found, err = repo.FindByWorkflowAndLead(ctx, "a", "b__c")
	require.NoError(t, err)
	assert.Equal(t, "i-2", found.ID)

	all, err := repo.List(ctx, persistence.InstanceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInstanceRepository_ConcurrentCreate(t *testing.T) {
	ctx := t.Context()
	repo := NewInstanceRepository(t.TempDir())

	const attempts = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)

	for i := range attempts {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			err := repo.Create(ctx, &models.WorkflowInstance{
				ID:         "i-" + string(rune('a'+i)),
				WorkflowID: "wf-1",
				LeadID:     "lead-1",
				Status:     models.InstanceStatusRunning,
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestInstanceRepository_UpdateAndList(t *testing.T) {
	ctx := t.Context()
	repo := NewInstanceRepository(t.TempDir())

	require.NoError(t, repo.Create(ctx, &models.WorkflowInstance{
		ID: "i-1", WorkflowID: "wf-1", LeadID: "lead-1", Status: models.InstanceStatusRunning, CurrentNodeID: "n1",
	}))
	require.NoError(t, repo.Create(ctx, &models.WorkflowInstance{
		ID: "i-2", WorkflowID: "wf-1", LeadID: "lead-2", Status: models.InstanceStatusRunning, CurrentNodeID: "n1",
	}))

	waiting := models.InstanceStatusWaiting
	next := time.Now().UTC().Add(-time.Minute)
	node := "n2"

	updated, err := repo.Update(ctx, "i-1", models.InstanceUpdate{
		Status:        &waiting,
		CurrentNodeID: &node,
		NextRun:       &next,
		AppendLogs:    []string{"waiting"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusWaiting, updated.Status)
	assert.Equal(t, "n2", updated.CurrentNodeID)

	require.NoError(t, repo.AppendLog(ctx, "i-1", "second"))

	loaded, err := repo.GetByID(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"waiting", "second"}, loaded.Logs)

	now := time.Now().UTC()
	due, err := repo.List(ctx, persistence.InstanceFilter{Status: models.InstanceStatusWaiting, DueBefore: &now})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "i-1", due[0].ID)

	all, err := repo.List(ctx, persistence.InstanceFilter{WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.Update(ctx, "missing", models.InstanceUpdate{})
	assert.True(t, persistence.IsInstanceNotFound(err))
}

func TestInstanceRepository_ConditionalUpdate(t *testing.T) {
	ctx := t.Context()
	repo := NewInstanceRepository(t.TempDir())

	require.NoError(t, repo.Create(ctx, &models.WorkflowInstance{
		ID: "i-1", WorkflowID: "wf-1", LeadID: "lead-1", Status: models.InstanceStatusRunning, CurrentNodeID: "n1",
	}))

	waiting := models.InstanceStatusWaiting
	node := "n2"

	_, err := repo.Update(ctx, "i-1", models.InstanceUpdate{ExpectStatus: &waiting, CurrentNodeID: &node})
	require.ErrorIs(t, err, persistence.ErrInstanceClaimed)

	loaded, err := repo.GetByID(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, "n1", loaded.CurrentNodeID)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	held, err := repo.Update(ctx, "i-1", models.InstanceUpdate{Lease: &models.Lease{At: at, Until: at.Add(time.Minute)}})
	require.NoError(t, err)
	require.NotNil(t, held.LeaseUntil)

	_, err = repo.Update(ctx, "i-1", models.InstanceUpdate{
		Lease:         &models.Lease{At: at.Add(time.Second), Until: at.Add(time.Hour)},
		CurrentNodeID: &node,
	})
	require.ErrorIs(t, err, persistence.ErrInstanceClaimed)

	expired, err := repo.Update(ctx, "i-1", models.InstanceUpdate{
		Lease:         &models.Lease{At: at.Add(time.Minute), Until: at.Add(2 * time.Minute)},
		CurrentNodeID: &node,
	})
	require.NoError(t, err)
	assert.Equal(t, "n2", expired.CurrentNodeID)
	assert.True(t, at.Add(2*time.Minute).Equal(*expired.LeaseUntil))

	released, err := repo.Update(ctx, "i-1", models.InstanceUpdate{ReleaseLease: true})
	require.NoError(t, err)
	assert.Nil(t, released.LeaseUntil)
}

func TestLeadRepository(t *testing.T) {
	ctx := t.Context()
	repo := NewLeadRepository(t.TempDir())

	require.NoError(t, repo.Save(ctx, &models.Lead{ID: "lead-1", Name: "Ada", Website: "https://example.com"}))

	status := "RUNNING"
	require.NoError(t, repo.Update(ctx, "lead-1", models.LeadUpdate{
		AutomationStatus: &status,
		EnrichedData:     &models.EnrichedData{DMName: "Ada", Email: "ada@example.com"},
	}))

	lead, err := repo.GetByID(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", lead.AutomationStatus)
	assert.Equal(t, "ada@example.com", lead.ContactEmail())

	_, err = repo.GetByID(ctx, "lead-2")
	assert.True(t, persistence.IsLeadNotFound(err))

	err = repo.Update(ctx, "lead-2", models.LeadUpdate{})
	assert.True(t, persistence.IsLeadNotFound(err))
}
