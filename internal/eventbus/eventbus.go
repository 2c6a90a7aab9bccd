// Package eventbus wraps the watermill NATS JetStream publisher behind the
// narrow publishing interface the modules use.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/FAForever/rating-server/internal/observability/attr"
)

// EventBus publishes domain events to the message exchange.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload any) error
	Close() error
}

// NATSEventBus is the production EventBus backed by NATS JetStream via
// watermill.
type NATSEventBus struct {
	publisher message.Publisher
	logger    *slog.Logger
}

var _ EventBus = (*NATSEventBus)(nil)

// NewNATSEventBus connects to NATS and builds a JetStream publisher.
func NewNATSEventBus(natsURL string, logger *slog.Logger) (*NATSEventBus, error) {
	options := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(1 * time.Second),
	}

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:         natsURL,
			NatsOptions: options,
			Marshaler:   &wmnats.NATSMarshaler{},
			JetStream: wmnats.JetStreamConfig{
				Disabled:      false,
				AutoProvision: true,
			},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}

	return NewWithPublisher(publisher, logger), nil
}

// NewWithPublisher wraps an existing watermill publisher. Used by tests with
// an in-memory pub/sub.
func NewWithPublisher(publisher message.Publisher, logger *slog.Logger) *NATSEventBus {
	return &NATSEventBus{publisher: publisher, logger: logger}
}

// Publish marshals the payload to JSON and publishes it on the topic. The
// context correlation id travels along in message metadata.
func (b *NATSEventBus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for topic %s: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	if id := attr.CorrelationID(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}

	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

func (b *NATSEventBus) Close() error {
	return b.publisher.Close()
}
