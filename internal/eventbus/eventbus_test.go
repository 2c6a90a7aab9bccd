package eventbus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FAForever/rating-server/internal/observability/attr"
)

func newInMemoryBus(t *testing.T) (*NATSEventBus, *gochannel.GoChannel) {
	t.Helper()
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithPublisher(pubsub, logger), pubsub
}

func receiveOne(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published message")
		return nil
	}
}

func TestPublish_PayloadArrivesAsJSON(t *testing.T) {
	bus, pubsub := newInMemoryBus(t)
	defer bus.Close()

	ctx := context.Background()
	messages, err := pubsub.Subscribe(ctx, "success.rating.update")
	require.NoError(t, err)

	payload := map[string]any{"game_id": float64(42), "player_id": float64(1)}
	require.NoError(t, bus.Publish(ctx, "success.rating.update", payload))

	msg := receiveOne(t, messages)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, payload, decoded)
	assert.NotEmpty(t, msg.UUID)
}

func TestPublish_CorrelationIDTravelsInMetadata(t *testing.T) {
	bus, pubsub := newInMemoryBus(t)
	defer bus.Close()

	ctx := attr.WithCorrelationID(context.Background(), "corr-123")
	messages, err := pubsub.Subscribe(ctx, "success.rating.update")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "success.rating.update", struct{}{}))

	msg := receiveOne(t, messages)
	assert.Equal(t, "corr-123", msg.Metadata.Get("correlation_id"))
}

func TestPublish_NoCorrelationIDLeavesMetadataEmpty(t *testing.T) {
	bus, pubsub := newInMemoryBus(t)
	defer bus.Close()

	ctx := context.Background()
	messages, err := pubsub.Subscribe(ctx, "success.rating.update")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "success.rating.update", struct{}{}))

	msg := receiveOne(t, messages)
	assert.Empty(t, msg.Metadata.Get("correlation_id"))
}

func TestPublish_UnmarshalablePayloadFails(t *testing.T) {
	bus, _ := newInMemoryBus(t)
	defer bus.Close()

	err := bus.Publish(context.Background(), "success.rating.update", func() {})
	require.Error(t, err)
}
