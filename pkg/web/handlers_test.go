package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/quasarerp/automations/pkg/credentials"
	"github.com/quasarerp/automations/pkg/engine"
	"github.com/quasarerp/automations/pkg/mocks"
	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence/file"
	"github.com/quasarerp/automations/pkg/services"
	"github.com/quasarerp/automations/pkg/testutil"
	"github.com/quasarerp/automations/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	app       *fiber.App
	store     *file.Persistence
	creds     *credentials.MemoryStore
	completer *mocks.MockCompleter
	mailer    *mocks.MockMailer
}

func setupTestApp(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := file.NewPersistence(t.TempDir())
	creds := credentials.NewMemoryStore()
	completer := &mocks.MockCompleter{}
	mailer := &mocks.MockMailer{}

	runner := engine.New(store, engine.Capabilities{
		Credentials: creds,
		Fetcher:     &mocks.MockFetcher{},
		Completer:   completer,
		Mailer:      mailer,
	}, logger)

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(store, nil, logger),
		services.NewTriggerListener(store, runner, nil, logger),
		services.NewResumer(store, runner, creds, logger),
		runner,
		store.InstanceRepository(),
		creds,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	web.Routes(app, handlers)

	return &testAPI{app: app, store: store, creds: creds, completer: completer, mailer: mailer}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func (a *testAPI) deploy(t *testing.T, graph *models.Graph) *models.Workflow {
	t.Helper()

	status, body := a.do(t, http.MethodPost, "/workflows", services.DeployRequest{
		Name:    "Outbound",
		Trigger: models.TriggerLeadApproved,
		Graph:   graph,
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))

	return &workflow
}

func (a *testAPI) lead(t *testing.T) *models.Lead {
	t.Helper()

	lead := testutil.CreateTestLead()
	require.NoError(t, a.store.LeadRepository().Save(context.Background(), lead))

	return lead
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	api := setupTestApp(t)

	status, body := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"status":"healthy"`)
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		request        any
		expectedStatus int
		expectedType   string
	}{
		{
			name: "valid graph",
			request: services.DeployRequest{
				Name: "Outbound", Trigger: models.TriggerLeadApproved, Graph: testutil.LinearGraph(),
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "graph without trigger",
			request: services.DeployRequest{
				Name:    "Outbound",
				Trigger: models.TriggerLeadApproved,
				Graph:   testutil.NewGraph().Node("G1", models.NodeTypeGoal).Build(),
			},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "malformed body",
			request:        "not an object",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := setupTestApp(t)

			status, body := api.do(t, http.MethodPost, "/workflows", tt.request)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedType != "" {
				assert.Contains(t, string(body), `"type":"`+tt.expectedType+`"`)
			}
		})
	}
}

func TestAPIHandlers_WorkflowLifecycle(t *testing.T) {
	api := setupTestApp(t)
	workflow := api.deploy(t, testutil.DecisionGraph())

	status, body := api.do(t, http.MethodGet, "/workflows/"+workflow.ID, nil)
	require.Equal(t, http.StatusOK, status)

	var fetched models.Workflow
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.True(t, fetched.Active)
	_, ok := fetched.Graph.NodeByID("D1")
	assert.True(t, ok)

	status, _ = api.do(t, http.MethodPatch, "/workflows/"+workflow.ID+"/active", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = api.do(t, http.MethodPatch, "/workflows/"+workflow.ID+"/active", map[string]any{"active": false})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"active":false`)

	status, _ = api.do(t, http.MethodDelete, "/workflows/"+workflow.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = api.do(t, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	status, body = api.do(t, http.MethodPatch, "/workflows/"+workflow.ID+"/active", map[string]any{"active": true})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), `"type":"conflict"`)

	status, body = api.do(t, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), `"type":"workflow_not_found"`)
}

func TestAPIHandlers_ApproveLeadPausesThenResumesOnCredential(t *testing.T) {
	api := setupTestApp(t)
	workflow := api.deploy(t, testutil.NewGraph().
		Node("T1", models.NodeTypeTrigger).
		Node("O1", models.NodeTypeOutreach).
		Node("G1", models.NodeTypeGoal).
		Edge("T1", "O1").
		Edge("O1", "G1").
		Build())
	lead := api.lead(t)

	status, body := api.do(t, http.MethodPost, "/leads/"+lead.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var approved struct {
		Started []*models.WorkflowInstance `json:"started"`
	}
	require.NoError(t, json.Unmarshal(body, &approved))
	require.Len(t, approved.Started, 1)

	instance := approved.Started[0]
	assert.Equal(t, models.InstanceStatusPaused, instance.Status)
	assert.Equal(t, "O1", instance.CurrentNodeID)

	status, _ = api.do(t, http.MethodPost, "/leads/"+lead.ID+"/approve", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = api.do(t, http.MethodGet, "/instances?workflow_id="+workflow.ID, nil)
	require.Equal(t, http.StatusOK, status)

	var summaries []web.InstanceSummary
	require.NoError(t, json.Unmarshal(body, &summaries))
	require.Len(t, summaries, 1)
	assert.Contains(t, summaries[0].LastLog, "mail account not connected")

	api.completer.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(json.RawMessage(`{"subject":"Hello Jane","body":"Loved your bakery."}`), nil)
	api.mailer.On("Send", mock.Anything, "token-1", lead.Email, "Hello Jane", "Loved your bakery.").
		Return("thread-1", nil)

	status, body = api.do(t, http.MethodPut, "/credentials/mail", web.CredentialRequest{Token: "token-1"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"resumed":1`)

	status, body = api.do(t, http.MethodGet, "/instances/"+instance.ID, nil)
	require.Equal(t, http.StatusOK, status)

	var resumed models.WorkflowInstance
	require.NoError(t, json.Unmarshal(body, &resumed))
	assert.Equal(t, models.InstanceStatusCompleted, resumed.Status)
	assert.Equal(t, "thread-1", resumed.LastThreadID)

	status, body = api.do(t, http.MethodPost, "/instances/"+instance.ID+"/resume", nil)
	assert.Equal(t, http.StatusConflict, status, string(body))

	api.mailer.AssertExpectations(t)
}

func TestAPIHandlers_Instances(t *testing.T) {
	api := setupTestApp(t)

	status, body := api.do(t, http.MethodGet, "/instances?status=SLEEPING", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "SLEEPING")

	status, _ = api.do(t, http.MethodGet, "/instances/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(t, http.MethodPost, "/instances/missing/step", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(t, http.MethodPost, "/leads/ghost/approve", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_WaitAndSweep(t *testing.T) {
	api := setupTestApp(t)
	api.deploy(t, testutil.NewGraph().
		Node("T1", models.NodeTypeTrigger).
		Node("W1", models.NodeTypeWait).
		Node("G1", models.NodeTypeGoal).
		Edge("T1", "W1").
		Edge("W1", "G1").
		Build())
	lead := api.lead(t)

	status, _ := api.do(t, http.MethodPost, "/leads/"+lead.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, status)

	status, body := api.do(t, http.MethodGet, "/instances?status=WAITING", nil)
	require.Equal(t, http.StatusOK, status)

	var summaries []web.InstanceSummary
	require.NoError(t, json.Unmarshal(body, &summaries))
	require.Len(t, summaries, 1)
	assert.NotNil(t, summaries[0].NextRun)

	status, body = api.do(t, http.MethodPost, "/sweeps", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"stepped":0}`, string(body))
}

func TestAPIHandlers_Credentials(t *testing.T) {
	api := setupTestApp(t)

	status, _ := api.do(t, http.MethodPut, "/credentials/fax", web.CredentialRequest{Token: "x"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(t, http.MethodPut, "/credentials/calendar", web.CredentialRequest{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := api.do(t, http.MethodPut, "/credentials/calendar", web.CredentialRequest{Token: "cal"})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"resumed":0`)

	token, err := api.creds.Get(context.Background(), credentials.KindCalendar)
	require.NoError(t, err)
	assert.Equal(t, "cal", token)

	status, _ = api.do(t, http.MethodDelete, "/credentials/calendar", nil)
	assert.Equal(t, http.StatusNoContent, status)

	token, err = api.creds.Get(context.Background(), credentials.KindCalendar)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestAPIHandlers_GetNodeTypes(t *testing.T) {
	api := setupTestApp(t)

	status, body := api.do(t, http.MethodGet, "/node-types", nil)
	require.Equal(t, http.StatusOK, status)

	var descriptors []map[string]any
	require.NoError(t, json.Unmarshal(body, &descriptors))
	assert.Len(t, descriptors, len(models.NodeTypes))
}
