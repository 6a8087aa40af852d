package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/quasarerp/automations/pkg/cmd"
	"github.com/quasarerp/automations/pkg/credentials"
	"github.com/quasarerp/automations/pkg/engine"
	"github.com/quasarerp/automations/pkg/persistence/file"
	"github.com/quasarerp/automations/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store := file.NewPersistence(t.TempDir())
	creds := credentials.NewMemoryStore()
	caps := cmd.NewCapabilities(creds, "http://backend.invalid", "", logger)
	runner := engine.New(store, caps, logger)

	return NewAPI(logger, &cmd.Stack{
		Persistence: store,
		Credentials: creds,
		Engine:      runner,
		Workflows:   services.NewWorkflow(store, nil, logger),
		Triggers:    services.NewTriggerListener(store, runner, nil, logger),
		Resumer:     services.NewResumer(store, runner, creds, logger),
	}).App()
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Quasar Automations API", body)
}

func TestAPI_Liveness(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/livez")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
}

func TestAPI_GetWorkflows_Empty(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/workflows")

	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)
}
