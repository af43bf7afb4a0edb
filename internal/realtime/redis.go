package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBroker publishes through redis pub/sub and fans received messages
// out to a local hub, so every server process sees every event.
type RedisBroker struct {
	client redis.UniversalClient
	prefix string
	hub    *Hub
}

// NewRedisBroker creates a broker on channel names "<prefix>:<topic>"
func NewRedisBroker(client redis.UniversalClient, prefix string) *RedisBroker {
	if prefix == "" {
		prefix = "shelfwise"
	}
	return &RedisBroker{client: client, prefix: prefix, hub: NewHub()}
}

func (b *RedisBroker) channel(topic string) string {
	return b.prefix + ":" + topic
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, evt Event) error {
	evt.Topic = topic
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(topic), payload).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(topic string) (<-chan Event, func()) {
	return b.hub.Subscribe(topic)
}

// Run relays redis messages into the local hub until ctx is done
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, b.prefix+":*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe failed: %w", err)
	}
	log.Info().Str("pattern", b.prefix+":*").Msg("realtime relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
				continue
			}
			topic := strings.TrimPrefix(msg.Channel, b.prefix+":")
			_ = b.hub.Publish(ctx, topic, evt)
		}
	}
}
