package cmd

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/quasarerp/automations/pkg/credentials"
	"github.com/quasarerp/automations/pkg/engine"
	"github.com/quasarerp/automations/pkg/events"
	"github.com/quasarerp/automations/pkg/mocks"
	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
	"github.com/quasarerp/automations/pkg/persistence/file"
	"github.com/quasarerp/automations/pkg/services"
	"github.com/quasarerp/automations/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWorker_StartsWorkflowOnLeadApproved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.DiscardHandler)
	store := file.NewPersistence(t.TempDir())
	creds := credentials.NewMemoryStore()

	bus, err := NewEventBus(EventBusGoChannel, "", "quasar-test", logger)
	require.NoError(t, err)

	runner := engine.New(store, engine.Capabilities{
		Credentials: creds,
		Fetcher:     &mocks.MockFetcher{},
		Completer:   &mocks.MockCompleter{},
		Mailer:      &mocks.MockMailer{},
	}, logger, engine.WithPublisher(bus))

	stack := &Stack{
		Persistence: store,
		Credentials: creds,
		EventBus:    bus,
		Engine:      runner,
		Triggers:    services.NewTriggerListener(store, runner, bus, logger),
		Resumer:     services.NewResumer(store, runner, creds, logger),
		closers:     []func(context.Context) error{func(context.Context) error { return bus.Close() }},
	}

	workflow := testutil.CreateTestWorkflow(testutil.NewGraph().
		Node("T1", models.NodeTypeTrigger).
		Node("W1", models.NodeTypeWait).
		Node("G1", models.NodeTypeGoal).
		Edge("T1", "W1").
		Edge("W1", "G1").
		Build())
	require.NoError(t, store.WorkflowRepository().Create(ctx, workflow))

	lead := testutil.CreateTestLead()
	require.NoError(t, store.LeadRepository().Save(ctx, lead))

	done := make(chan error, 1)

	go func() {
		done <- RunWorker(ctx, stack, "@every 1h", logger)
	}()

	assert.Eventually(t, func() bool {
		_ = bus.Publish(ctx, lead.ID, events.NewLeadApproved(lead.ID))

		instances, err := store.InstanceRepository().List(ctx, persistence.InstanceFilter{LeadID: lead.ID})

		return err == nil && len(instances) == 1 && instances[0].Status == models.InstanceStatusWaiting
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, stack.Close(context.Background()))
}
