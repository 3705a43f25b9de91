package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmflow/dmflow/pkg/channels/gochannel"
	"github.com/dmflow/dmflow/pkg/eventbus"
	"github.com/dmflow/dmflow/pkg/events"
	"github.com/dmflow/dmflow/pkg/models"
)

func TestWatermillEventBus_RoundTrip(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan *events.PlatformEvent, 1)

	err = bus.Handle(events.PlatformEventReceived, func(_ context.Context, event any) error {
		platformEvent, ok := event.(*events.PlatformEvent)
		require.True(t, ok)

		received <- platformEvent

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(t.Context()))

	event := events.NewPlatformEvent("acc-1", models.TriggerTypeDM, "sender-1")
	event.Text = "hey there"

	require.NoError(t, bus.Publish(t.Context(), "acc-1", event))

	select {
	case got := <-received:
		assert.Equal(t, "acc-1", got.AccountID)
		assert.Equal(t, models.TriggerTypeDM, got.TriggerType)
		assert.Equal(t, "hey there", got.Text)
		assert.Equal(t, event.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_UnknownEventTypeIsSkipped(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	require.NoError(t, bus.Subscribe(t.Context()))

	// No handler registered: the message is acked and dropped, Publish must
	// still return.
	event := events.NewPlatformEvent("acc-1", models.TriggerTypeComment, "sender-1")
	require.NoError(t, bus.Publish(t.Context(), "acc-1", event))
}

func TestPlatformEventValidate(t *testing.T) {
	t.Parallel()

	event := events.NewPlatformEvent("acc-1", models.TriggerTypeDM, "sender-1")
	require.NoError(t, event.Validate())

	event.SenderID = ""
	assert.ErrorIs(t, event.Validate(), events.ErrInvalidPlatformEvent)
}
