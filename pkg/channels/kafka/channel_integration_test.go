package kafka_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/quasarerp/automations/pkg/channels/kafka"
	"github.com/quasarerp/automations/pkg/eventbus"
	"github.com/quasarerp/automations/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaTc "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func TestCreateChannel_DeliversLeadApproved(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := kafkaTc.Run(ctx, "confluentinc/confluent-local:7.7.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_CREATE_TOPICS": "true",
	}))
	require.NoError(t, err)

	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	pub, sub, err := kafka.CreateChannel(watermill.NopLogger{}, brokers, "quasar-test")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan string, 1)

	require.NoError(t, bus.Handle(events.LeadApprovedEvent, func(_ context.Context, event any) error {
		select {
		case received <- event.(*events.LeadApproved).LeadID:
		default:
		}

		return nil
	}))

	require.NoError(t, bus.Publish(ctx, "lead-1", events.NewLeadApproved("lead-1")))
	require.NoError(t, bus.Subscribe(ctx))

	select {
	case leadID := <-received:
		assert.Equal(t, "lead-1", leadID)
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}
