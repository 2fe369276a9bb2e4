package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/maumercado/hce-go/internal/controlplane/events"
	"github.com/maumercado/hce-go/internal/metrics"
)

const channelName = "hce:controlplane:events"

// EventBus republishes local control-plane events to every other
// process's control plane over Redis pub/sub, and delivers events
// published by peers to a local channel the dashboard hub forwards to
// its WebSocket clients — mirroring the teacher's events/redis_pubsub.go
// shape, applied to control-plane events instead of task-queue events.
type EventBus struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewEventBus wraps an existing Redis client.
func NewEventBus(client *redis.Client, log zerolog.Logger) *EventBus {
	return &EventBus{client: client, log: log.With().Str("component", "cluster-events").Logger()}
}

// Publish broadcasts ev to every subscribed control plane in the fleet,
// including this one's own subscription (callers that originate an
// event locally should rely on the hub directly rather than round-trip
// through Redis; Publish is for events this process wants to share).
func (b *EventBus) Publish(ctx context.Context, ev *events.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("cluster: failed to serialize event: %w", err)
	}
	start := time.Now()
	err = b.client.Publish(ctx, channelName, data).Err()
	metrics.RecordRedisOperation("publish", time.Since(start).Seconds())
	if err != nil {
		metrics.RecordRedisError("publish")
		return fmt.Errorf("cluster: failed to publish event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of events published by any control plane
// in the fleet (including this process's own Publish calls). The
// returned channel is closed when ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan *events.Event, error) {
	pubsub := b.client.Subscribe(ctx, channelName)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("cluster: failed to subscribe: %w", err)
	}

	out := make(chan *events.Event, 100)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ev, err := events.FromJSON([]byte(msg.Payload))
				if err != nil {
					b.log.Error().Err(err).Msg("failed to parse cluster event")
					continue
				}
				select {
				case out <- ev:
				default:
					b.log.Warn().Str("event_type", string(ev.Type)).Msg("cluster event channel full, dropping")
				}
			}
		}
	}()

	return out, nil
}
