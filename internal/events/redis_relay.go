package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Compile-time check to ensure RedisRelay implements Publisher.
var _ Publisher = (*RedisRelay)(nil)

// RedisRelay publishes task events to a Redis pub/sub channel and, while Run
// is active, relays every message on that channel into a local Hub. Running
// one relay per server instance lets a client connected anywhere see events
// produced by any instance.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRedisRelay creates a relay on channel that feeds hub.
func NewRedisRelay(client redis.UniversalClient, channel string, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logger.With("component", "redis_relay", "channel", channel),
		ready:   make(chan struct{}),
	}
}

// Publish sends event to the Redis channel.
func (r *RedisRelay) Publish(ctx context.Context, event *TaskEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode task event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish task event: %w", err)
	}
	return nil
}

// Ready is closed once Run has confirmed its subscription.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Run subscribes to the channel and relays messages into the hub until ctx
// is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() {
		if err := sub.Close(); err != nil {
			r.logger.Warn("failed to close subscription", "error", err)
		}
	}()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info("relaying task events")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.relay(msg.Payload)
		}
	}
}

func (r *RedisRelay) relay(payload string) {
	var envelope struct {
		Payload struct {
			ProjectID uuid.UUID `json:"projectId"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		r.logger.Warn("discarding malformed task event", "error", err)
		return
	}
	r.hub.Deliver(envelope.Payload.ProjectID, []byte(payload))
}
